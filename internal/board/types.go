// Package board holds the retrospective board model and the rules that
// reconcile votes and merge cards into groups.
package board

import "time"

type Board struct {
	ID            string
	Title         string
	Phase         string
	Mode          string
	MultipleVotes bool
	CreatedAt     time.Time
	Columns       map[string]Column
}

// Settings is the board-level record written at a BoardKey.
type Settings struct {
	Title         string
	Phase         string
	Mode          string
	MultipleVotes bool
	CreatedAt     time.Time
}

type Column struct {
	ID       string
	Title    string
	Position int
	Cards    map[string]Card
	Groups   map[string]Group
}

type Card struct {
	ID        string
	Content   string
	Votes     int
	Voters    map[string]int
	CreatedAt time.Time
	GroupID   string
	CreatedBy string
	Comments  map[string]Comment
	Reactions map[string]Reaction
}

type Group struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Votes     int
}

type Comment struct {
	ID        string
	Content   string
	Author    string
	CreatedAt time.Time
}

type Reaction struct {
	Count int
	Users []string
}

// UserVote returns the caller's recorded vote, zero when absent.
func (c Card) UserVote(userID string) int {
	return c.Voters[userID]
}

// Clone returns a copy of c that shares no maps with it.
func (c Card) Clone() Card {
	out := c
	out.Voters = make(map[string]int, len(c.Voters))
	for user, vote := range c.Voters {
		out.Voters[user] = vote
	}
	out.Comments = make(map[string]Comment, len(c.Comments))
	for id, comment := range c.Comments {
		out.Comments[id] = comment
	}
	out.Reactions = make(map[string]Reaction, len(c.Reactions))
	for emoji, reaction := range c.Reactions {
		reaction.Users = append([]string(nil), reaction.Users...)
		out.Reactions[emoji] = reaction
	}
	return out
}

func (col Column) Clone() Column {
	out := col
	out.Cards = make(map[string]Card, len(col.Cards))
	for id, card := range col.Cards {
		out.Cards[id] = card.Clone()
	}
	out.Groups = make(map[string]Group, len(col.Groups))
	for id, group := range col.Groups {
		out.Groups[id] = group
	}
	return out
}

func (b Board) Clone() Board {
	out := b
	out.Columns = make(map[string]Column, len(b.Columns))
	for id, col := range b.Columns {
		out.Columns[id] = col.Clone()
	}
	return out
}

// FindCard locates a card by id across all columns.
func (b Board) FindCard(cardID string) (Card, string, bool) {
	for columnID, col := range b.Columns {
		if card, ok := col.Cards[cardID]; ok {
			return card, columnID, true
		}
	}
	return Card{}, "", false
}

func (b Board) Settings() Settings {
	return Settings{
		Title:         b.Title,
		Phase:         b.Phase,
		Mode:          b.Mode,
		MultipleVotes: b.MultipleVotes,
		CreatedAt:     b.CreatedAt,
	}
}

// NewCard returns a fresh card with no votes and no group.
func NewCard(id, content, createdBy string, createdAt time.Time) Card {
	return Card{
		ID:        id,
		Content:   content,
		Voters:    map[string]int{},
		CreatedAt: createdAt,
		CreatedBy: createdBy,
		Comments:  map[string]Comment{},
		Reactions: map[string]Reaction{},
	}
}
