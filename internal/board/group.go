package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Placement is where the two cards of a drop currently live.
type Placement struct {
	DraggedCardID   string
	TargetCardID    string
	DraggedColumnID string
	TargetColumnID  string
	TargetCreatedAt time.Time
	Dragged         Card
	Target          Card
	// TargetGroupID is set only when the target's group record still exists.
	TargetGroupID string
}

// CrossColumn reports whether the dragged card has to move first.
func (p Placement) CrossColumn() bool {
	return p.DraggedColumnID != p.TargetColumnID
}

// ExistingGroupID is the group the target already belongs to, if any.
func (p Placement) ExistingGroupID() string {
	return p.TargetGroupID
}

// BeginGrouping locates both cards of a drop in b.
func BeginGrouping(b Board, draggedCardID, targetCardID string) (Placement, error) {
	if draggedCardID == targetCardID {
		return Placement{}, ErrSelfGroup
	}
	dragged, draggedColumnID, ok := b.FindCard(draggedCardID)
	if !ok {
		return Placement{}, fmt.Errorf("%w: %s", ErrCardNotFound, draggedCardID)
	}
	target, targetColumnID, ok := b.FindCard(targetCardID)
	if !ok {
		return Placement{}, fmt.Errorf("%w: %s", ErrCardNotFound, targetCardID)
	}
	// A back-reference to an erased group record leaves the target ungrouped.
	var groupID string
	if _, ok := b.Columns[targetColumnID].Groups[target.GroupID]; ok {
		groupID = target.GroupID
	}
	return Placement{
		DraggedCardID:   draggedCardID,
		TargetCardID:    targetCardID,
		DraggedColumnID: draggedColumnID,
		TargetColumnID:  targetColumnID,
		TargetCreatedAt: target.CreatedAt,
		Dragged:         dragged,
		Target:          target,
		TargetGroupID:   groupID,
	}, nil
}

// Grouper commits groups through a Store.
type Grouper struct {
	store Store
	newID func() string
}

func NewGrouper(st Store, newID func() string) *Grouper {
	return &Grouper{store: st, newID: newID}
}

// Commit merges the two cards of p into a group named name. A dragged card
// from another column is relocated into the target column first. When the
// target is already grouped the dragged card joins that group and name may be
// blank.
func (g *Grouper) Commit(ctx context.Context, boardID, name string, p Placement) (Group, error) {
	name = strings.TrimSpace(name)
	joining := p.ExistingGroupID() != ""
	if name == "" && !joining {
		return Group{}, fmt.Errorf("%w: group name is required", ErrValidation)
	}

	target := ColumnKey{BoardID: boardID, ColumnID: p.TargetColumnID}
	if p.CrossColumn() {
		if err := g.relocate(ctx, boardID, p); err != nil {
			return Group{}, fmt.Errorf("relocate card %s: %w", p.DraggedCardID, err)
		}
	}

	var (
		group Group
		err   error
	)
	if joining {
		group, err = g.join(ctx, target, p)
	} else {
		group, err = g.create(ctx, target, name, p)
	}
	if err != nil && p.CrossColumn() {
		if undoErr := g.moveBack(ctx, boardID, p); undoErr != nil {
			err = errors.Join(err, fmt.Errorf("move card %s back: %w", p.DraggedCardID, undoErr))
		}
	}
	return group, err
}

func (g *Grouper) create(ctx context.Context, column ColumnKey, name string, p Placement) (Group, error) {
	group := Group{
		ID:        g.newID(),
		Name:      name,
		CreatedAt: p.TargetCreatedAt,
	}
	groupKey := column.Group(group.ID)
	if err := write(ctx, g.store, groupKey, group); err != nil {
		return Group{}, err
	}

	var linked []CardKey
	for _, cardID := range []string{p.DraggedCardID, p.TargetCardID} {
		cardKey := column.Card(cardID)
		if err := write(ctx, g.store, cardKey.Group(), group.ID); err != nil {
			return Group{}, errors.Join(err, g.unlink(ctx, groupKey, linked))
		}
		linked = append(linked, cardKey)
	}
	return group, nil
}

func (g *Grouper) join(ctx context.Context, column ColumnKey, p Placement) (Group, error) {
	cardKey := column.Card(p.DraggedCardID)
	if err := write(ctx, g.store, cardKey.Group(), p.ExistingGroupID()); err != nil {
		return Group{}, err
	}
	return Group{ID: p.ExistingGroupID()}, nil
}

// unlink removes a half-written group.
func (g *Grouper) unlink(ctx context.Context, groupKey GroupKey, linked []CardKey) error {
	var errs []error
	for _, cardKey := range linked {
		if err := erase(ctx, g.store, cardKey.Group()); err != nil {
			errs = append(errs, err)
		}
	}
	if err := erase(ctx, g.store, groupKey); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// relocate moves the dragged card into the target column with its group
// reference cleared. A failed move leaves the source card as it was.
func (g *Grouper) relocate(ctx context.Context, boardID string, p Placement) error {
	from := CardKey{BoardID: boardID, ColumnID: p.DraggedColumnID, CardID: p.DraggedCardID}
	to := CardKey{BoardID: boardID, ColumnID: p.TargetColumnID, CardID: p.DraggedCardID}

	moved := p.Dragged.Clone()
	moved.GroupID = ""
	return g.move(ctx, from, to, moved, p.Dragged)
}

func (g *Grouper) moveBack(ctx context.Context, boardID string, p Placement) error {
	from := CardKey{BoardID: boardID, ColumnID: p.TargetColumnID, CardID: p.DraggedCardID}
	to := CardKey{BoardID: boardID, ColumnID: p.DraggedColumnID, CardID: p.DraggedCardID}

	moved := p.Dragged.Clone()
	moved.GroupID = ""
	return g.move(ctx, from, to, p.Dragged.Clone(), moved)
}

// move is insert-then-remove. If the remove fails, original is restored at
// from and the copy at to is dropped.
func (g *Grouper) move(ctx context.Context, from, to CardKey, card, original Card) error {
	if err := write(ctx, g.store, to, card); err != nil {
		return err
	}
	if err := erase(ctx, g.store, from); err != nil {
		undoErr := write(ctx, g.store, from, original)
		if undoErr == nil {
			undoErr = erase(ctx, g.store, to)
		}
		return errors.Join(err, undoErr)
	}
	return nil
}
