package board

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store and board reader.
type MemoryStore struct {
	mu     sync.RWMutex
	boards map[string]*Board
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{boards: make(map[string]*Board)}
}

func (m *MemoryStore) LoadBoard(_ context.Context, boardID string) (Board, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.boards[boardID]
	if !ok {
		return Board{}, fmt.Errorf("%w: %s", ErrBoardNotFound, boardID)
	}
	return b.Clone(), nil
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

func (m *MemoryStore) Write(_ context.Context, key Key, value any) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	switch k := key.(type) {
	case BoardKey:
		settings, ok := value.(Settings)
		if !ok {
			return typeError(key, value)
		}
		b := m.boards[k.BoardID]
		if b == nil {
			b = &Board{ID: k.BoardID, Columns: map[string]Column{}}
			m.boards[k.BoardID] = b
		}
		b.Title = settings.Title
		b.Phase = settings.Phase
		b.Mode = settings.Mode
		b.MultipleVotes = settings.MultipleVotes
		b.CreatedAt = settings.CreatedAt
		return nil
	case ColumnKey:
		col, ok := value.(Column)
		if !ok {
			return typeError(key, value)
		}
		b, err := m.board(k.BoardID)
		if err != nil {
			return err
		}
		existing, found := b.Columns[k.ColumnID]
		if !found {
			existing = Column{ID: k.ColumnID, Cards: map[string]Card{}, Groups: map[string]Group{}}
		}
		existing.Title = col.Title
		existing.Position = col.Position
		b.Columns[k.ColumnID] = existing
		return nil
	case CardKey:
		card, ok := value.(Card)
		if !ok {
			return typeError(key, value)
		}
		col, err := m.column(k.Column())
		if err != nil {
			return err
		}
		card = card.Clone()
		card.ID = k.CardID
		col.Cards[k.CardID] = card
		return nil
	case GroupKey:
		group, ok := value.(Group)
		if !ok {
			return typeError(key, value)
		}
		col, err := m.column(ColumnKey{BoardID: k.BoardID, ColumnID: k.ColumnID})
		if err != nil {
			return err
		}
		group.ID = k.GroupID
		col.Groups[k.GroupID] = group
		return nil
	}

	return m.updateCard(key, value)
}

func (m *MemoryStore) updateCard(key Key, value any) error {
	var cardKey CardKey
	switch k := key.(type) {
	case VotesKey:
		cardKey = k.Card
	case VoterKey:
		cardKey = k.Card
	case CardGroupKey:
		cardKey = k.Card
	case CommentKey:
		cardKey = k.Card
	case ReactionKey:
		cardKey = k.Card
	default:
		return fmt.Errorf("%w: %T", ErrValidation, key)
	}

	col, err := m.column(cardKey.Column())
	if err != nil {
		return err
	}
	card, ok := col.Cards[cardKey.CardID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCardNotFound, cardKey.Path())
	}

	switch k := key.(type) {
	case VotesKey:
		votes, ok := value.(int)
		if !ok {
			return typeError(key, value)
		}
		card.Votes = votes
	case VoterKey:
		vote, ok := value.(int)
		if !ok {
			return typeError(key, value)
		}
		if card.Voters == nil {
			card.Voters = map[string]int{}
		}
		card.Voters[k.UserID] = vote
	case CardGroupKey:
		groupID, ok := value.(string)
		if !ok {
			return typeError(key, value)
		}
		card.GroupID = groupID
	case CommentKey:
		comment, ok := value.(Comment)
		if !ok {
			return typeError(key, value)
		}
		if card.Comments == nil {
			card.Comments = map[string]Comment{}
		}
		comment.ID = k.CommentID
		card.Comments[k.CommentID] = comment
	case ReactionKey:
		reaction, ok := value.(Reaction)
		if !ok {
			return typeError(key, value)
		}
		if card.Reactions == nil {
			card.Reactions = map[string]Reaction{}
		}
		reaction.Users = append([]string(nil), reaction.Users...)
		card.Reactions[k.Emoji] = reaction
	}
	col.Cards[cardKey.CardID] = card
	return nil
}

// Erase deletes the node at key. Missing nodes are not an error.
func (m *MemoryStore) Erase(_ context.Context, key Key) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	switch k := key.(type) {
	case BoardKey:
		delete(m.boards, k.BoardID)
		return nil
	case ColumnKey:
		if b, ok := m.boards[k.BoardID]; ok {
			delete(b.Columns, k.ColumnID)
		}
		return nil
	case CardKey:
		if col, err := m.column(k.Column()); err == nil {
			delete(col.Cards, k.CardID)
		}
		return nil
	case GroupKey:
		if col, err := m.column(ColumnKey{BoardID: k.BoardID, ColumnID: k.ColumnID}); err == nil {
			delete(col.Groups, k.GroupID)
		}
		return nil
	}

	var cardKey CardKey
	switch k := key.(type) {
	case VotesKey:
		cardKey = k.Card
	case VoterKey:
		cardKey = k.Card
	case CardGroupKey:
		cardKey = k.Card
	case CommentKey:
		cardKey = k.Card
	case ReactionKey:
		cardKey = k.Card
	}
	col, err := m.column(cardKey.Column())
	if err != nil {
		return nil
	}
	card, ok := col.Cards[cardKey.CardID]
	if !ok {
		return nil
	}
	switch k := key.(type) {
	case VotesKey:
		card.Votes = 0
	case VoterKey:
		delete(card.Voters, k.UserID)
	case CardGroupKey:
		card.GroupID = ""
	case CommentKey:
		delete(card.Comments, k.CommentID)
	case ReactionKey:
		delete(card.Reactions, k.Emoji)
	}
	col.Cards[cardKey.CardID] = card
	return nil
}

func (m *MemoryStore) board(boardID string) (*Board, error) {
	b, ok := m.boards[boardID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBoardNotFound, boardID)
	}
	return b, nil
}

// column returns the live column; its maps may be mutated in place.
func (m *MemoryStore) column(key ColumnKey) (Column, error) {
	b, err := m.board(key.BoardID)
	if err != nil {
		return Column{}, err
	}
	col, ok := b.Columns[key.ColumnID]
	if !ok {
		return Column{}, fmt.Errorf("%w: %s", ErrColumnNotFound, key.Path())
	}
	if col.Cards == nil {
		col.Cards = map[string]Card{}
		b.Columns[key.ColumnID] = col
	}
	if col.Groups == nil {
		col.Groups = map[string]Group{}
		b.Columns[key.ColumnID] = col
	}
	return col, nil
}

func typeError(key Key, value any) error {
	return fmt.Errorf("%w: %s got %T", ErrValueType, key.Path(), value)
}
