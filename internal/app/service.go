package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"retroboard/api/internal/board"
	"retroboard/api/internal/config"
	"retroboard/api/internal/presence"
	"retroboard/api/internal/search"
	"retroboard/api/internal/util"
	"retroboard/api/internal/workflow"
)

type CreateBoardInput struct {
	Title         string   `json:"title" validate:"required,max=200"`
	Mode          string   `json:"mode" validate:"omitempty,oneof=guided freeform"`
	MultipleVotes bool     `json:"multipleVotes"`
	Columns       []string `json:"columns" validate:"max=12,dive,required,max=80"`
}

var defaultColumns = []string{"Went well", "To improve", "Action items"}

type dataStore interface {
	board.Store
	LoadBoard(ctx context.Context, boardID string) (board.Board, error)
	Ping(ctx context.Context) error
}

type presenceTracker interface {
	Start(ctx context.Context, boardID, userID, columnID string) error
	Stop(ctx context.Context, boardID, userID string) error
	UsersAddingCardsIn(ctx context.Context, boardID, columnID, callerID string) ([]presence.Entry, error)
}

type cardSearch interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexCard(card search.CardRecord)
}

type Service struct {
	cfg         config.Config
	store       dataStore
	presence    presenceTracker
	search      cardSearch
	notifier    Notifier
	grouper     *board.Grouper
	now         func() time.Time
	groupingTTL time.Duration
	groupingMu  sync.Mutex
	groupings   map[string]pendingGrouping
}

func New(cfg config.Config, st dataStore, tracker presenceTracker, searcher cardSearch, notifier Notifier) *Service {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if searcher == nil {
		searcher = search.NewService(nil, search.NewBoardScan(st))
	}
	if tracker == nil {
		tracker = presence.NewRegistry(cfg.PresenceCapacity, cfg.PresenceTTL)
	}
	groupingTTL := cfg.GroupingTTL
	if groupingTTL <= 0 {
		groupingTTL = 5 * time.Minute
	}
	return &Service{
		cfg:         cfg,
		store:       st,
		presence:    tracker,
		search:      searcher,
		notifier:    notifier,
		grouper:     board.NewGrouper(st, util.IDFunc("grp")),
		now:         func() time.Time { return time.Now().UTC() },
		groupingTTL: groupingTTL,
		groupings:   make(map[string]pendingGrouping),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// PingPresence checks the presence backend when it is remote.
func (s *Service) PingPresence(ctx context.Context) (bool, error) {
	pinger, ok := s.presence.(interface{ Ping(context.Context) error })
	if !ok {
		return false, nil
	}
	return true, pinger.Ping(ctx)
}

func (s *Service) CreateBoard(ctx context.Context, userID string, input CreateBoardInput) (BoardView, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return BoardView{}, validationError("title is required", nil)
	}
	columns := input.Columns
	if len(columns) == 0 {
		columns = defaultColumns
	}

	boardID := util.NewID("board")
	key := board.BoardKey{BoardID: boardID}
	settings := board.Settings{
		Title:         title,
		Phase:         string(workflow.PhaseCollect),
		Mode:          string(workflow.NormalizeMode(input.Mode)),
		MultipleVotes: input.MultipleVotes,
		CreatedAt:     s.now(),
	}
	if err := s.write(ctx, key, settings); err != nil {
		return BoardView{}, err
	}
	for i, columnTitle := range columns {
		col := board.Column{Title: strings.TrimSpace(columnTitle), Position: i}
		if err := s.write(ctx, key.Column(util.NewID("col")), col); err != nil {
			return BoardView{}, err
		}
	}
	log.Printf("app: board %s created by %s", boardID, userID)
	return s.GetBoard(ctx, boardID, userID, board.SortByCreated)
}

func (s *Service) GetBoard(ctx context.Context, boardID, userID string, order board.SortOrder) (BoardView, error) {
	b, err := s.store.LoadBoard(ctx, boardID)
	if err != nil {
		return BoardView{}, err
	}
	return boardView(b, userID, order), nil
}

func (s *Service) SetPhase(ctx context.Context, boardID, userID, phase string) (BoardView, error) {
	phase = strings.ToLower(strings.TrimSpace(phase))
	if !workflow.ValidPhase(phase) {
		return BoardView{}, validationError("invalid phase", map[string]any{"phase": phase})
	}
	b, err := s.store.LoadBoard(ctx, boardID)
	if err != nil {
		return BoardView{}, err
	}
	settings := b.Settings()
	settings.Phase = phase
	if err := s.write(ctx, board.BoardKey{BoardID: boardID}, settings); err != nil {
		return BoardView{}, err
	}
	log.Printf("app: board %s moved to phase %s by %s", boardID, phase, userID)
	return s.GetBoard(ctx, boardID, userID, board.SortByCreated)
}

func (s *Service) AddColumn(ctx context.Context, boardID, title string) (ColumnView, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return ColumnView{}, validationError("title is required", nil)
	}
	b, err := s.store.LoadBoard(ctx, boardID)
	if err != nil {
		return ColumnView{}, err
	}
	col := board.Column{ID: util.NewID("col"), Title: title, Position: len(b.Columns)}
	if err := s.write(ctx, board.BoardKey{BoardID: boardID}.Column(col.ID), col); err != nil {
		return ColumnView{}, err
	}
	return ColumnView{ID: col.ID, Title: col.Title, Position: col.Position, Items: []ItemView{}}, nil
}

func (s *Service) AddCard(ctx context.Context, boardID, columnID, userID, content string) (CardView, error) {
	b, err := s.store.LoadBoard(ctx, boardID)
	if err != nil {
		return CardView{}, err
	}
	if _, ok := b.Columns[columnID]; !ok {
		return CardView{}, fmt.Errorf("%w: %s", board.ErrColumnNotFound, columnID)
	}
	if !workflow.IsCardCreationAllowed(workflow.NormalizePhase(b.Phase), workflow.NormalizeMode(b.Mode)) {
		return CardView{}, s.phaseLocked(ctx, boardID, userID, "Adding cards is closed in this phase")
	}
	content, err = board.ValidateCardContent(content)
	if err != nil {
		s.notifier.Notify(ctx, boardID, userID, "Card content cannot be empty")
		return CardView{}, err
	}

	card := board.NewCard(util.NewID("card"), content, userID, s.now())
	if err := s.write(ctx, board.BoardKey{BoardID: boardID}.Column(columnID).Card(card.ID), card); err != nil {
		return CardView{}, err
	}
	if err := s.presence.Stop(ctx, boardID, userID); err != nil {
		log.Printf("app: clear presence for %s: %v", userID, err)
	}
	s.search.IndexCard(search.Record(boardID, columnID, card.ID, card.Content, userID, card.CreatedAt))
	return cardView(card, columnID, userID), nil
}

// VoteCard resolves one vote request against the current card snapshot and
// commits it. Rejections are a normal result, not an error.
func (s *Service) VoteCard(ctx context.Context, boardID, columnID, cardID, userID string, delta int) (VoteResult, error) {
	if delta != 1 && delta != -1 {
		return VoteResult{}, validationError("delta must be 1 or -1", nil)
	}
	b, card, err := s.loadCard(ctx, boardID, columnID, cardID, userID)
	if err != nil {
		return VoteResult{}, err
	}

	resolution := board.Resolve(card.UserVote(userID), delta, b.MultipleVotes, card.Votes)
	voteOutcomes.WithLabelValues(string(resolution.Outcome)).Inc()
	result := VoteResult{
		CardID:  cardID,
		Outcome: string(resolution.Outcome),
		Message: resolution.Outcome.Message(),
		Votes:   card.Votes,
		MyVote:  card.UserVote(userID),
	}
	if resolution.Outcome.Rejected() {
		s.notifier.Notify(ctx, boardID, userID, result.Message)
		return result, nil
	}

	updated, err := board.Apply(card, userID, resolution, b.MultipleVotes)
	if err != nil {
		return VoteResult{}, err
	}
	key := board.BoardKey{BoardID: boardID}.Column(columnID).Card(cardID)
	if err := board.CommitVote(ctx, s.store, key, userID, updated); err != nil {
		s.storeFailed(ctx, boardID, userID, err)
		return VoteResult{}, err
	}

	result.Applied = true
	result.Votes = updated.Votes
	result.MyVote = updated.UserVote(userID)
	return result, nil
}

func (s *Service) AddComment(ctx context.Context, boardID, columnID, cardID, userID, content string) (CommentView, error) {
	if _, _, err := s.loadCard(ctx, boardID, columnID, cardID, userID); err != nil {
		return CommentView{}, err
	}
	comment, err := board.NewComment(util.NewID("cmt"), userID, content, s.now())
	if err != nil {
		s.notifier.Notify(ctx, boardID, userID, "Comment cannot be empty")
		return CommentView{}, err
	}
	key := board.BoardKey{BoardID: boardID}.Column(columnID).Card(cardID).Comment(comment.ID)
	if err := s.write(ctx, key, comment); err != nil {
		return CommentView{}, err
	}
	return commentView(comment), nil
}

func (s *Service) ToggleReaction(ctx context.Context, boardID, columnID, cardID, userID, emoji string) (ReactionView, error) {
	emoji, err := board.ValidateEmoji(emoji)
	if err != nil {
		return ReactionView{}, err
	}
	_, card, err := s.loadCard(ctx, boardID, columnID, cardID, userID)
	if err != nil {
		return ReactionView{}, err
	}

	next, _ := board.ToggleReaction(card.Reactions[emoji], userID)
	key := board.BoardKey{BoardID: boardID}.Column(columnID).Card(cardID).Reaction(emoji)
	if next.Count == 0 {
		err = s.erase(ctx, key)
	} else {
		err = s.write(ctx, key, next)
	}
	if err != nil {
		return ReactionView{}, err
	}
	return reactionView(emoji, next, userID), nil
}

// StartGrouping handles a card dropped onto another card. A self-drop is a
// silent no-op; otherwise the drop waits for a group name.
func (s *Service) StartGrouping(ctx context.Context, boardID, userID, draggedCardID, targetCardID string) (GroupingView, error) {
	b, err := s.store.LoadBoard(ctx, boardID)
	if err != nil {
		return GroupingView{}, err
	}
	placement, err := board.BeginGrouping(b, draggedCardID, targetCardID)
	if errors.Is(err, board.ErrSelfGroup) {
		return GroupingView{State: string(board.GroupingIdle)}, nil
	}
	if err != nil {
		s.notifier.Notify(ctx, boardID, userID, "That card no longer exists")
		return GroupingView{}, err
	}

	session := board.NewGroupingSession()
	if err := session.Drop(placement, s.groupingAllowed(b)); err != nil {
		return GroupingView{}, err
	}
	if session.State() != board.GroupingAwaitingName {
		return GroupingView{}, s.phaseLocked(ctx, boardID, userID, "Grouping is closed in this phase")
	}

	id := util.NewID("grouping")
	record := s.storeGrouping(id, pendingGrouping{boardID: boardID, userID: userID, session: session})
	return groupingView(id, record), nil
}

// ConfirmGrouping commits a pending drop under name. The workflow gate and
// both cards are checked again against the current board first.
func (s *Service) ConfirmGrouping(ctx context.Context, boardID, groupingID, userID, name string) (GroupView, error) {
	record, ok := s.claimGrouping(groupingID, boardID, userID)
	if !ok {
		return GroupView{}, notFound("grouping not found")
	}

	b, err := s.store.LoadBoard(ctx, boardID)
	if err != nil {
		s.restoreGrouping(groupingID, record)
		return GroupView{}, err
	}

	pending := record.session.Placement()
	placement, err := board.BeginGrouping(b, pending.DraggedCardID, pending.TargetCardID)
	if err != nil {
		s.notifier.Notify(ctx, boardID, userID, "That card no longer exists")
		return GroupView{}, err
	}

	// Re-drop with the fresh placement so the commit sees current columns
	// and the current phase.
	if err := record.session.Cancel(); err != nil {
		return GroupView{}, err
	}
	if err := record.session.Drop(placement, s.groupingAllowed(b)); err != nil {
		return GroupView{}, err
	}
	if record.session.State() != board.GroupingAwaitingName {
		return GroupView{}, s.phaseLocked(ctx, boardID, userID, "Grouping is closed in this phase")
	}
	if strings.TrimSpace(name) == "" && placement.ExistingGroupID() == "" {
		s.restoreGrouping(groupingID, record)
		s.notifier.Notify(ctx, boardID, userID, "Group name cannot be empty")
		return GroupView{}, fmt.Errorf("%w: group name is required", board.ErrValidation)
	}

	group, err := record.session.Confirm(ctx, s.grouper, boardID, name)
	if err != nil {
		groupingCommits.WithLabelValues("failed").Inc()
		s.storeFailed(ctx, boardID, userID, err)
		return GroupView{}, err
	}
	if placement.ExistingGroupID() != "" {
		groupingCommits.WithLabelValues("joined").Inc()
	} else {
		groupingCommits.WithLabelValues("created").Inc()
	}
	if placement.CrossColumn() {
		d := placement.Dragged
		s.search.IndexCard(search.Record(boardID, placement.TargetColumnID, d.ID, d.Content, d.CreatedBy, d.CreatedAt))
	}

	view := GroupView{
		ID:        group.ID,
		ColumnID:  placement.TargetColumnID,
		Name:      group.Name,
		Votes:     group.Votes,
		CreatedAt: group.CreatedAt,
		Cards:     []CardView{},
	}
	if fresh, err := s.store.LoadBoard(ctx, boardID); err == nil {
		for _, item := range board.Compose(fresh.Columns[placement.TargetColumnID], board.SortByCreated) {
			if item.Kind == board.ItemGroup && item.Group.ID == group.ID {
				for _, member := range item.Members {
					view.Cards = append(view.Cards, cardView(member, placement.TargetColumnID, userID))
				}
			}
		}
	}
	return view, nil
}

func (s *Service) CancelGrouping(ctx context.Context, boardID, groupingID, userID string) error {
	record, ok := s.claimGrouping(groupingID, boardID, userID)
	if !ok {
		return notFound("grouping not found")
	}
	return record.session.Cancel()
}

func (s *Service) StartTyping(ctx context.Context, boardID, userID, columnID string) error {
	b, err := s.store.LoadBoard(ctx, boardID)
	if err != nil {
		return err
	}
	if _, ok := b.Columns[columnID]; !ok {
		return fmt.Errorf("%w: %s", board.ErrColumnNotFound, columnID)
	}
	return s.presence.Start(ctx, boardID, userID, columnID)
}

func (s *Service) StopTyping(ctx context.Context, boardID, userID string) error {
	return s.presence.Stop(ctx, boardID, userID)
}

// TypingUsers lists the other users composing a card in columnID.
func (s *Service) TypingUsers(ctx context.Context, boardID, columnID, userID string) ([]presence.Entry, error) {
	entries, err := s.presence.UsersAddingCardsIn(ctx, boardID, columnID, userID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []presence.Entry{}
	}
	return entries, nil
}

func (s *Service) SearchCards(ctx context.Context, boardID, text string, limit, offset int) (search.Response, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return search.Response{}, validationError("q is required", nil)
	}
	if _, err := s.store.LoadBoard(ctx, boardID); err != nil {
		return search.Response{}, err
	}
	return s.search.Search(ctx, search.Query{BoardID: boardID, Text: text, Limit: limit, Offset: offset}), nil
}

func (s *Service) loadCard(ctx context.Context, boardID, columnID, cardID, userID string) (board.Board, board.Card, error) {
	b, err := s.store.LoadBoard(ctx, boardID)
	if err != nil {
		return board.Board{}, board.Card{}, err
	}
	card, ok := b.Columns[columnID].Cards[cardID]
	if !ok {
		s.notifier.Notify(ctx, boardID, userID, "That card no longer exists")
		return board.Board{}, board.Card{}, fmt.Errorf("%w: %s", board.ErrCardNotFound, cardID)
	}
	return b, card, nil
}

func (s *Service) groupingAllowed(b board.Board) bool {
	return workflow.IsGroupingAllowed(workflow.NormalizePhase(b.Phase), workflow.NormalizeMode(b.Mode))
}

func (s *Service) phaseLocked(ctx context.Context, boardID, userID, message string) error {
	s.notifier.Notify(ctx, boardID, userID, message)
	return domainError(http.StatusConflict, "PHASE_LOCKED", message, nil)
}

func (s *Service) write(ctx context.Context, key board.Key, value any) error {
	if err := s.store.Write(ctx, key, value); err != nil {
		storeFailures.WithLabelValues("write").Inc()
		return &board.StoreError{Op: "write", Path: key.Path(), Err: err}
	}
	return nil
}

func (s *Service) erase(ctx context.Context, key board.Key) error {
	if err := s.store.Erase(ctx, key); err != nil {
		storeFailures.WithLabelValues("erase").Inc()
		return &board.StoreError{Op: "erase", Path: key.Path(), Err: err}
	}
	return nil
}

// storeFailed counts and logs a store rejection surfaced by the board engine.
func (s *Service) storeFailed(ctx context.Context, boardID, userID string, err error) {
	var storeErr *board.StoreError
	if !errors.As(err, &storeErr) {
		return
	}
	storeFailures.WithLabelValues(storeErr.Op).Inc()
	log.Printf("app: board %s: %v", boardID, err)
	s.notifier.Notify(ctx, boardID, userID, "Saving failed, please try again")
}
