package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type apiClient struct {
	t       *testing.T
	handler http.Handler
}

func newAPIClient(t *testing.T) *apiClient {
	t.Helper()
	svc, _, _ := newTestService(t)
	return &apiClient{t: t, handler: NewHTTPServer(svc, "*").Handler()}
}

func (c *apiClient) do(method, path, userID string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)
	return rr
}

func decodeResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
}

func (c *apiClient) createBoard(body map[string]any) BoardView {
	c.t.Helper()
	rr := c.do(http.MethodPost, "/api/boards", "u1", body)
	expectStatus(c.t, rr, http.StatusCreated)
	return decodeResponse[BoardView](c.t, rr)
}

func (c *apiClient) addCard(boardID, columnID, content string) CardView {
	c.t.Helper()
	rr := c.do(http.MethodPost, "/api/boards/"+boardID+"/columns/"+columnID+"/cards", "u1", map[string]any{"content": content})
	expectStatus(c.t, rr, http.StatusCreated)
	return decodeResponse[CardView](c.t, rr)
}

func TestBoardRoutesRequireUser(t *testing.T) {
	c := newAPIClient(t)
	rr := c.do(http.MethodPost, "/api/boards", "", map[string]any{"title": "Sprint"})
	expectStatus(t, rr, http.StatusUnauthorized)
	if body := decodeResponse[map[string]any](t, rr); body["code"] != "UNAUTHORIZED" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestCreateBoardValidation(t *testing.T) {
	c := newAPIClient(t)

	rr := c.do(http.MethodPost, "/api/boards", "u1", map[string]any{"mode": "chaos"})
	expectStatus(t, rr, http.StatusUnprocessableEntity)
	body := decodeResponse[map[string]any](t, rr)
	details, _ := body["details"].(map[string]any)
	if body["code"] != "VALIDATION_ERROR" || details["title"] == nil || details["mode"] == nil {
		t.Fatalf("expected field details for title and mode, got %v", body)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/boards", bytes.NewBufferString("{"))
	req.Header.Set("X-User-ID", "u1")
	bad := httptest.NewRecorder()
	c.handler.ServeHTTP(bad, req)
	expectStatus(t, bad, http.StatusBadRequest)
}

func TestBoardNotFound(t *testing.T) {
	c := newAPIClient(t)
	rr := c.do(http.MethodGet, "/api/boards/board_missing", "u1", nil)
	expectStatus(t, rr, http.StatusNotFound)
	if body := decodeResponse[map[string]any](t, rr); body["code"] != "NOT_FOUND" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestVoteRoute(t *testing.T) {
	c := newAPIClient(t)
	view := c.createBoard(map[string]any{"title": "Sprint"})
	columnID := view.Columns[0].ID
	card := c.addCard(view.ID, columnID, "pairing")
	votesPath := "/api/boards/" + view.ID + "/columns/" + columnID + "/cards/" + card.ID + "/votes"

	rr := c.do(http.MethodPost, votesPath, "u2", map[string]any{"delta": 1})
	expectStatus(t, rr, http.StatusOK)
	if result := decodeResponse[VoteResult](t, rr); !result.Applied || result.Votes != 1 {
		t.Fatalf("unexpected vote result %+v", result)
	}

	// A rejected vote is still a successful request.
	rr = c.do(http.MethodPost, votesPath, "u2", map[string]any{"delta": 1})
	expectStatus(t, rr, http.StatusOK)
	result := decodeResponse[VoteResult](t, rr)
	if result.Applied || result.Outcome != "REJECTED_DUPLICATE" || result.Message == "" {
		t.Fatalf("unexpected rejected result %+v", result)
	}

	rr = c.do(http.MethodPost, votesPath, "u2", map[string]any{"delta": 3})
	expectStatus(t, rr, http.StatusUnprocessableEntity)

	rr = c.do(http.MethodPost, "/api/boards/"+view.ID+"/columns/"+columnID+"/cards/card_gone/votes", "u2", map[string]any{"delta": 1})
	expectStatus(t, rr, http.StatusNotFound)
	if body := decodeResponse[map[string]any](t, rr); body["code"] != "CARD_NOT_FOUND" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestPhaseLockedRoute(t *testing.T) {
	c := newAPIClient(t)
	view := c.createBoard(map[string]any{"title": "Sprint"})

	rr := c.do(http.MethodPut, "/api/boards/"+view.ID+"/phase", "u1", map[string]any{"phase": "discuss"})
	expectStatus(t, rr, http.StatusOK)
	if updated := decodeResponse[BoardView](t, rr); updated.Phase != "discuss" || updated.CardCreationAllowed {
		t.Fatalf("unexpected board %+v", updated)
	}

	rr = c.do(http.MethodPost, "/api/boards/"+view.ID+"/columns/"+view.Columns[0].ID+"/cards", "u1", map[string]any{"content": "late"})
	expectStatus(t, rr, http.StatusConflict)
	if body := decodeResponse[map[string]any](t, rr); body["code"] != "PHASE_LOCKED" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestGroupingRoutes(t *testing.T) {
	c := newAPIClient(t)
	view := c.createBoard(map[string]any{"title": "Sprint", "columns": []string{"Good", "Bad"}})
	a := c.addCard(view.ID, view.Columns[0].ID, "standups ran long")
	b := c.addCard(view.ID, view.Columns[1].ID, "meetings")
	groupingsPath := "/api/boards/" + view.ID + "/groupings"

	rr := c.do(http.MethodPost, groupingsPath, "u1", map[string]any{"draggedCardId": a.ID, "targetCardId": a.ID})
	expectStatus(t, rr, http.StatusOK)
	if idle := decodeResponse[GroupingView](t, rr); idle.State != "IDLE" {
		t.Fatalf("expected idle self drop, got %+v", idle)
	}

	rr = c.do(http.MethodPost, groupingsPath, "u1", map[string]any{"draggedCardId": a.ID, "targetCardId": b.ID})
	expectStatus(t, rr, http.StatusCreated)
	pending := decodeResponse[GroupingView](t, rr)
	if pending.State != "AWAITING_NAME" || !pending.CrossColumn {
		t.Fatalf("unexpected pending grouping %+v", pending)
	}

	rr = c.do(http.MethodPost, groupingsPath+"/"+pending.ID+"/confirm", "u1", map[string]any{"name": ""})
	expectStatus(t, rr, http.StatusUnprocessableEntity)

	rr = c.do(http.MethodPost, groupingsPath+"/"+pending.ID+"/confirm", "u1", map[string]any{"name": "Meetings"})
	expectStatus(t, rr, http.StatusOK)
	if group := decodeResponse[GroupView](t, rr); group.Name != "Meetings" || len(group.Cards) != 2 {
		t.Fatalf("unexpected group %+v", group)
	}

	rr = c.do(http.MethodGet, "/api/boards/"+view.ID, "u1", nil)
	expectStatus(t, rr, http.StatusOK)
	loaded := decodeResponse[BoardView](t, rr)
	if len(loaded.Columns[0].Items) != 0 || len(loaded.Columns[1].Items) != 1 || loaded.Columns[1].Items[0].Kind != "group" {
		t.Fatalf("expected a single group in the target column, got %+v", loaded.Columns)
	}

	rr = c.do(http.MethodDelete, groupingsPath+"/"+pending.ID, "u1", nil)
	expectStatus(t, rr, http.StatusNotFound)
}

func TestPresenceRoutes(t *testing.T) {
	c := newAPIClient(t)
	view := c.createBoard(map[string]any{"title": "Sprint"})
	columnID := view.Columns[0].ID
	presencePath := "/api/boards/" + view.ID + "/presence"

	expectStatus(t, c.do(http.MethodPut, presencePath, "u2", map[string]any{"columnId": columnID}), http.StatusNoContent)

	rr := c.do(http.MethodGet, "/api/boards/"+view.ID+"/columns/"+columnID+"/presence", "u1", nil)
	expectStatus(t, rr, http.StatusOK)
	body := decodeResponse[struct {
		Users []struct {
			UserID string `json:"userId"`
		} `json:"users"`
	}](t, rr)
	if len(body.Users) != 1 || body.Users[0].UserID != "u2" {
		t.Fatalf("unexpected presence %+v", body)
	}

	expectStatus(t, c.do(http.MethodDelete, presencePath, "u2", nil), http.StatusNoContent)
	rr = c.do(http.MethodGet, "/api/boards/"+view.ID+"/columns/"+columnID+"/presence", "u1", nil)
	if got := rr.Body.String(); got != "{\"users\":[]}\n" {
		t.Fatalf("expected empty users list, got %s", got)
	}
}

func TestCommentReactionAndSearchRoutes(t *testing.T) {
	c := newAPIClient(t)
	view := c.createBoard(map[string]any{"title": "Sprint"})
	columnID := view.Columns[0].ID
	card := c.addCard(view.ID, columnID, "Release checklist")
	cardPath := "/api/boards/" + view.ID + "/columns/" + columnID + "/cards/" + card.ID

	expectStatus(t, c.do(http.MethodPost, cardPath+"/comments", "u2", map[string]any{"content": "+1"}), http.StatusCreated)

	rr := c.do(http.MethodPost, cardPath+"/reactions", "u2", map[string]any{"emoji": "👍"})
	expectStatus(t, rr, http.StatusOK)
	if reaction := decodeResponse[ReactionView](t, rr); reaction.Count != 1 || !reaction.Reacted {
		t.Fatalf("unexpected reaction %+v", reaction)
	}

	rr = c.do(http.MethodGet, "/api/boards/"+view.ID+"/search?q=checklist&limit=5", "u1", nil)
	expectStatus(t, rr, http.StatusOK)
	response := decodeResponse[map[string]any](t, rr)
	if response["total"] != float64(1) {
		t.Fatalf("unexpected search response %v", response)
	}

	expectStatus(t, c.do(http.MethodGet, "/api/boards/"+view.ID+"/search", "u1", nil), http.StatusUnprocessableEntity)
}

func TestAddColumnRoute(t *testing.T) {
	c := newAPIClient(t)
	view := c.createBoard(map[string]any{"title": "Sprint", "columns": []string{"Only"}})

	rr := c.do(http.MethodPost, "/api/boards/"+view.ID+"/columns", "u1", map[string]any{"title": "Kudos"})
	expectStatus(t, rr, http.StatusCreated)
	if col := decodeResponse[ColumnView](t, rr); col.Title != "Kudos" || col.Position != 1 {
		t.Fatalf("unexpected column %+v", col)
	}
}

func TestUnknownRoute(t *testing.T) {
	c := newAPIClient(t)
	rr := c.do(http.MethodGet, "/api/nope", "u1", nil)
	expectStatus(t, rr, http.StatusNotFound)
}
