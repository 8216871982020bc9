package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"retroboard/api/internal/board"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	validator  *requestValidator
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, validator: newRequestValidator()}
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: strings.Split(s.corsOrigin, ","),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-User-ID", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/api/health", s.handleHealth)
	r.Head("/api/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)
	r.Head("/api/ready", s.handleReady)

	r.Route("/api/boards", func(r chi.Router) {
		r.Use(requireUser)
		r.Post("/", s.handleCreateBoard)
		r.Route("/{boardID}", func(r chi.Router) {
			r.Get("/", s.handleGetBoard)
			r.Put("/phase", s.handleSetPhase)
			r.Post("/columns", s.handleAddColumn)
			r.Post("/columns/{columnID}/cards", s.handleAddCard)
			r.Get("/columns/{columnID}/presence", s.handleTypingUsers)
			r.Route("/columns/{columnID}/cards/{cardID}", func(r chi.Router) {
				r.Post("/votes", s.handleVote)
				r.Post("/comments", s.handleAddComment)
				r.Post("/reactions", s.handleToggleReaction)
			})
			r.Post("/groupings", s.handleStartGrouping)
			r.Post("/groupings/{groupingID}/confirm", s.handleConfirmGrouping)
			r.Delete("/groupings/{groupingID}", s.handleCancelGrouping)
			r.Put("/presence", s.handleStartTyping)
			r.Delete("/presence", s.handleStopTyping)
			r.Get("/search", s.handleSearch)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})
	return s.withMiddleware(r)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"store": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["store"] = map[string]any{"status": "error", "error": err.Error()}
	}
	if remote, err := s.service.PingPresence(ctx); remote {
		if err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["presence"] = map[string]any{"status": "error", "error": err.Error()}
		} else {
			checks["presence"] = map[string]any{"status": "ok"}
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var body CreateBoardInput
	if !s.decodeValid(w, r, &body) {
		return
	}
	view, err := s.service.CreateBoard(r.Context(), userIDFrom(r.Context()), body)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *HTTPServer) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	order := board.ParseSortOrder(r.URL.Query().Get("sort"))
	view, err := s.service.GetBoard(r.Context(), chi.URLParam(r, "boardID"), userIDFrom(r.Context()), order)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleSetPhase(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phase string `json:"phase" validate:"required"`
	}
	if !s.decodeValid(w, r, &body) {
		return
	}
	view, err := s.service.SetPhase(r.Context(), chi.URLParam(r, "boardID"), userIDFrom(r.Context()), body.Phase)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleAddColumn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title" validate:"required,max=80"`
	}
	if !s.decodeValid(w, r, &body) {
		return
	}
	view, err := s.service.AddColumn(r.Context(), chi.URLParam(r, "boardID"), body.Title)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *HTTPServer) handleAddCard(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content" validate:"max=2000"`
	}
	if !s.decodeValid(w, r, &body) {
		return
	}
	view, err := s.service.AddCard(r.Context(), chi.URLParam(r, "boardID"), chi.URLParam(r, "columnID"), userIDFrom(r.Context()), body.Content)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *HTTPServer) handleVote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Delta int `json:"delta" validate:"oneof=-1 1"`
	}
	if !s.decodeValid(w, r, &body) {
		return
	}
	result, err := s.service.VoteCard(r.Context(),
		chi.URLParam(r, "boardID"),
		chi.URLParam(r, "columnID"),
		chi.URLParam(r, "cardID"),
		userIDFrom(r.Context()),
		body.Delta,
	)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content" validate:"max=2000"`
	}
	if !s.decodeValid(w, r, &body) {
		return
	}
	view, err := s.service.AddComment(r.Context(),
		chi.URLParam(r, "boardID"),
		chi.URLParam(r, "columnID"),
		chi.URLParam(r, "cardID"),
		userIDFrom(r.Context()),
		body.Content,
	)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *HTTPServer) handleToggleReaction(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Emoji string `json:"emoji" validate:"required"`
	}
	if !s.decodeValid(w, r, &body) {
		return
	}
	view, err := s.service.ToggleReaction(r.Context(),
		chi.URLParam(r, "boardID"),
		chi.URLParam(r, "columnID"),
		chi.URLParam(r, "cardID"),
		userIDFrom(r.Context()),
		body.Emoji,
	)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleStartGrouping(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DraggedCardID string `json:"draggedCardId" validate:"required"`
		TargetCardID  string `json:"targetCardId" validate:"required"`
	}
	if !s.decodeValid(w, r, &body) {
		return
	}
	view, err := s.service.StartGrouping(r.Context(), chi.URLParam(r, "boardID"), userIDFrom(r.Context()), body.DraggedCardID, body.TargetCardID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	status := http.StatusCreated
	if view.ID == "" {
		status = http.StatusOK
	}
	writeJSON(w, status, view)
}

func (s *HTTPServer) handleConfirmGrouping(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name" validate:"max=120"`
	}
	if !s.decodeValid(w, r, &body) {
		return
	}
	view, err := s.service.ConfirmGrouping(r.Context(), chi.URLParam(r, "boardID"), chi.URLParam(r, "groupingID"), userIDFrom(r.Context()), body.Name)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleCancelGrouping(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CancelGrouping(r.Context(), chi.URLParam(r, "boardID"), chi.URLParam(r, "groupingID"), userIDFrom(r.Context())); err != nil {
		writeMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleStartTyping(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ColumnID string `json:"columnId" validate:"required"`
	}
	if !s.decodeValid(w, r, &body) {
		return
	}
	if err := s.service.StartTyping(r.Context(), chi.URLParam(r, "boardID"), userIDFrom(r.Context()), body.ColumnID); err != nil {
		writeMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleStopTyping(w http.ResponseWriter, r *http.Request) {
	if err := s.service.StopTyping(r.Context(), chi.URLParam(r, "boardID"), userIDFrom(r.Context())); err != nil {
		writeMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleTypingUsers(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.TypingUsers(r.Context(), chi.URLParam(r, "boardID"), chi.URLParam(r, "columnID"), userIDFrom(r.Context()))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": entries})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	response, err := s.service.SearchCards(r.Context(), chi.URLParam(r, "boardID"), query.Get("q"), limit, offset)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// decodeValid decodes and validates the request body, writing the error
// response itself when either step fails.
func (s *HTTPServer) decodeValid(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeBody(r, target); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return false
	}
	if err := s.validator.Validate(target); err != nil {
		writeMappedError(w, err)
		return false
	}
	return true
}

type userIDKey struct{}

// requireUser reads the caller from X-User-ID.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey{}, userID)))
	})
}

func userIDFrom(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey{}).(string)
	return userID
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		writer.Header().Set("Cache-Control", "no-store")
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey{}).(string)
	return requestID
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("app: %s: %v", code, err)
	}
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, board.ErrCardNotFound):
		return http.StatusNotFound, "CARD_NOT_FOUND", "That card no longer exists", nil
	case errors.Is(err, board.ErrBoardNotFound), errors.Is(err, board.ErrColumnNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, board.ErrValidation):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", validationMessage(err), nil
	case errors.Is(err, board.ErrInvalidTransition), errors.Is(err, board.ErrNegativeTally):
		return http.StatusConflict, "CONFLICT", "The board changed, please retry", nil
	}
	var storeErr *board.StoreError
	if errors.As(err, &storeErr) {
		return http.StatusBadGateway, "STORE_ERROR", "Saving failed, please try again", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

// validationMessage strips the sentinel prefix from a wrapped ErrValidation.
func validationMessage(err error) string {
	msg := err.Error()
	if _, rest, ok := strings.Cut(msg, board.ErrValidation.Error()+": "); ok {
		return rest
	}
	return msg
}
