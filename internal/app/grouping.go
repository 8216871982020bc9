package app

import (
	"time"

	"retroboard/api/internal/board"
)

// pendingGrouping is a drop waiting for its group name. A user holds at most
// one per board.
type pendingGrouping struct {
	boardID   string
	userID    string
	session   *board.GroupingSession
	expiresAt time.Time
}

func (s *Service) pruneGroupingsLocked(now time.Time) {
	for id, record := range s.groupings {
		if now.After(record.expiresAt) {
			delete(s.groupings, id)
		}
	}
}

// storeGrouping saves record under id and drops any other pending grouping
// of the same user on the same board.
func (s *Service) storeGrouping(id string, record pendingGrouping) pendingGrouping {
	s.groupingMu.Lock()
	defer s.groupingMu.Unlock()
	s.pruneGroupingsLocked(s.now())
	for otherID, other := range s.groupings {
		if other.boardID == record.boardID && other.userID == record.userID {
			_ = other.session.Cancel()
			delete(s.groupings, otherID)
		}
	}
	record.expiresAt = s.now().Add(s.groupingTTL)
	s.groupings[id] = record
	return record
}

// claimGrouping removes and returns the caller's pending grouping. The caller
// owns the session until it calls restoreGrouping or lets it go.
func (s *Service) claimGrouping(id, boardID, userID string) (pendingGrouping, bool) {
	s.groupingMu.Lock()
	defer s.groupingMu.Unlock()
	s.pruneGroupingsLocked(s.now())
	record, ok := s.groupings[id]
	if !ok || record.boardID != boardID || record.userID != userID {
		return pendingGrouping{}, false
	}
	delete(s.groupings, id)
	return record, true
}

func (s *Service) restoreGrouping(id string, record pendingGrouping) {
	s.groupingMu.Lock()
	defer s.groupingMu.Unlock()
	if _, taken := s.groupings[id]; !taken {
		s.groupings[id] = record
	}
}

func (s *Service) pendingGroupingCount() int {
	s.groupingMu.Lock()
	defer s.groupingMu.Unlock()
	s.pruneGroupingsLocked(s.now())
	return len(s.groupings)
}

func groupingView(id string, record pendingGrouping) GroupingView {
	p := record.session.Placement()
	view := GroupingView{
		ID:              id,
		State:           string(record.session.State()),
		DraggedCardID:   p.DraggedCardID,
		TargetCardID:    p.TargetCardID,
		CrossColumn:     p.CrossColumn(),
		ExistingGroupID: p.ExistingGroupID(),
		NameRequired:    p.ExistingGroupID() == "",
	}
	if !record.expiresAt.IsZero() {
		view.ExpiresAt = record.expiresAt.UTC().Format(time.RFC3339)
	}
	return view
}
