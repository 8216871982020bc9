package board

import (
	"context"
	"fmt"
)

type GroupingState string

const (
	GroupingIdle         GroupingState = "IDLE"
	GroupingAwaitingName GroupingState = "AWAITING_NAME"
	GroupingCommitting   GroupingState = "COMMITTING"
)

// GroupingSession walks one drop through naming and commit.
// It is not safe for concurrent use.
type GroupingSession struct {
	state     GroupingState
	placement Placement
}

func NewGroupingSession() *GroupingSession {
	return &GroupingSession{state: GroupingIdle}
}

func (s *GroupingSession) State() GroupingState {
	return s.state
}

func (s *GroupingSession) Placement() Placement {
	return s.placement
}

// Drop records a card dropped on another card. allowed is the workflow gate
// at drop time; a closed gate leaves the session idle.
func (s *GroupingSession) Drop(p Placement, allowed bool) error {
	if s.state != GroupingIdle {
		return fmt.Errorf("%w: drop while %s", ErrInvalidTransition, s.state)
	}
	if !allowed {
		return nil
	}
	s.placement = p
	s.state = GroupingAwaitingName
	return nil
}

// Cancel abandons a pending drop.
func (s *GroupingSession) Cancel() error {
	if s.state != GroupingAwaitingName {
		return fmt.Errorf("%w: cancel while %s", ErrInvalidTransition, s.state)
	}
	s.placement = Placement{}
	s.state = GroupingIdle
	return nil
}

// Confirm commits the pending drop under name. The session returns to idle
// whether or not the commit succeeds.
func (s *GroupingSession) Confirm(ctx context.Context, g *Grouper, boardID, name string) (Group, error) {
	if s.state != GroupingAwaitingName {
		return Group{}, fmt.Errorf("%w: confirm while %s", ErrInvalidTransition, s.state)
	}
	s.state = GroupingCommitting
	defer func() {
		s.placement = Placement{}
		s.state = GroupingIdle
	}()
	return g.Commit(ctx, boardID, name, s.placement)
}
