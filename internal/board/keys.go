package board

import (
	"context"
	"fmt"
	"strings"
)

// Key addresses one node of a board in the backing store.
type Key interface {
	Path() string
}

// Store is the key-path storage the engine writes through. Write overwrites
// the node at key and Erase deletes it; both are idempotent.
//
// Value types per key:
//
//	BoardKey     Settings
//	ColumnKey    Column (title and position only)
//	CardKey      Card
//	VotesKey     int
//	VoterKey     int
//	CardGroupKey string
//	GroupKey     Group
//	CommentKey   Comment
//	ReactionKey  Reaction
type Store interface {
	Write(ctx context.Context, key Key, value any) error
	Erase(ctx context.Context, key Key) error
}

type BoardKey struct {
	BoardID string
}

type ColumnKey struct {
	BoardID  string
	ColumnID string
}

type CardKey struct {
	BoardID  string
	ColumnID string
	CardID   string
}

type VotesKey struct {
	Card CardKey
}

type VoterKey struct {
	Card   CardKey
	UserID string
}

type CardGroupKey struct {
	Card CardKey
}

type GroupKey struct {
	BoardID  string
	ColumnID string
	GroupID  string
}

type CommentKey struct {
	Card      CardKey
	CommentID string
}

type ReactionKey struct {
	Card  CardKey
	Emoji string
}

func (k BoardKey) Path() string { return "boards/" + k.BoardID }

func (k BoardKey) Column(columnID string) ColumnKey {
	return ColumnKey{BoardID: k.BoardID, ColumnID: columnID}
}

func (k ColumnKey) Path() string {
	return BoardKey{BoardID: k.BoardID}.Path() + "/columns/" + k.ColumnID
}

func (k ColumnKey) Card(cardID string) CardKey {
	return CardKey{BoardID: k.BoardID, ColumnID: k.ColumnID, CardID: cardID}
}

func (k ColumnKey) Group(groupID string) GroupKey {
	return GroupKey{BoardID: k.BoardID, ColumnID: k.ColumnID, GroupID: groupID}
}

func (k CardKey) Column() ColumnKey {
	return ColumnKey{BoardID: k.BoardID, ColumnID: k.ColumnID}
}

func (k CardKey) Path() string { return k.Column().Path() + "/cards/" + k.CardID }

func (k CardKey) Votes() VotesKey { return VotesKey{Card: k} }

func (k CardKey) Voter(userID string) VoterKey { return VoterKey{Card: k, UserID: userID} }

func (k CardKey) Group() CardGroupKey { return CardGroupKey{Card: k} }

func (k CardKey) Comment(commentID string) CommentKey {
	return CommentKey{Card: k, CommentID: commentID}
}

func (k CardKey) Reaction(emoji string) ReactionKey { return ReactionKey{Card: k, Emoji: emoji} }

func (k VotesKey) Path() string { return k.Card.Path() + "/votes" }

func (k VoterKey) Path() string { return k.Card.Path() + "/voters/" + k.UserID }

func (k CardGroupKey) Path() string { return k.Card.Path() + "/groupId" }

func (k GroupKey) Path() string {
	return ColumnKey{BoardID: k.BoardID, ColumnID: k.ColumnID}.Path() + "/groups/" + k.GroupID
}

func (k CommentKey) Path() string { return k.Card.Path() + "/comments/" + k.CommentID }

func (k ReactionKey) Path() string { return k.Card.Path() + "/reactions/" + k.Emoji }

// ValidateKey rejects keys with empty or slash-bearing segments.
func ValidateKey(key Key) error {
	segments := strings.Split(key.Path(), "/")
	for _, segment := range segments {
		if segment == "" {
			return fmt.Errorf("%w: incomplete key %q", ErrValidation, key.Path())
		}
	}
	var want int
	switch key.(type) {
	case BoardKey:
		want = 2
	case ColumnKey:
		want = 4
	case CardKey:
		want = 6
	case VotesKey, CardGroupKey:
		want = 7
	case VoterKey, CommentKey, ReactionKey:
		want = 8
	case GroupKey:
		want = 6
	default:
		return fmt.Errorf("%w: unknown key type %T", ErrValidation, key)
	}
	if len(segments) != want {
		return fmt.Errorf("%w: malformed key %q", ErrValidation, key.Path())
	}
	return nil
}
