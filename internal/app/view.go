package app

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"retroboard/api/internal/board"
	"retroboard/api/internal/workflow"
)

type BoardView struct {
	ID                  string       `json:"id"`
	Title               string       `json:"title"`
	Phase               string       `json:"phase"`
	Mode                string       `json:"mode"`
	MultipleVotes       bool         `json:"multipleVotes"`
	CreatedAt           time.Time    `json:"createdAt"`
	CardCreationAllowed bool         `json:"cardCreationAllowed"`
	GroupingAllowed     bool         `json:"groupingAllowed"`
	Sort                string       `json:"sort"`
	Columns             []ColumnView `json:"columns"`
}

type ColumnView struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Position int        `json:"position"`
	Items    []ItemView `json:"items"`
}

// ItemView is either a card or a group; Kind says which field is set.
type ItemView struct {
	Kind  string     `json:"kind"`
	Card  *CardView  `json:"card,omitempty"`
	Group *GroupView `json:"group,omitempty"`
}

type GroupView struct {
	ID        string     `json:"id"`
	ColumnID  string     `json:"columnId"`
	Name      string     `json:"name"`
	Votes     int        `json:"votes"`
	CreatedAt time.Time  `json:"createdAt"`
	Cards     []CardView `json:"cards"`
}

type CardView struct {
	ID        string         `json:"id"`
	ColumnID  string         `json:"columnId"`
	Content   string         `json:"content"`
	Votes     int            `json:"votes"`
	MyVote    int            `json:"myVote"`
	GroupID   string         `json:"groupId,omitempty"`
	CreatedBy string         `json:"createdBy"`
	CreatedAt time.Time      `json:"createdAt"`
	Comments  []CommentView  `json:"comments"`
	Reactions []ReactionView `json:"reactions"`
}

type CommentView struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type ReactionView struct {
	Emoji   string   `json:"emoji"`
	Count   int      `json:"count"`
	Users   []string `json:"users"`
	Reacted bool     `json:"reacted"`
}

type VoteResult struct {
	CardID  string `json:"cardId"`
	Outcome string `json:"outcome"`
	Applied bool   `json:"applied"`
	Message string `json:"message"`
	Votes   int    `json:"votes"`
	MyVote  int    `json:"myVote"`
}

type GroupingView struct {
	ID              string `json:"id,omitempty"`
	State           string `json:"state"`
	DraggedCardID   string `json:"draggedCardId,omitempty"`
	TargetCardID    string `json:"targetCardId,omitempty"`
	CrossColumn     bool   `json:"crossColumn"`
	ExistingGroupID string `json:"existingGroupId,omitempty"`
	NameRequired    bool   `json:"nameRequired"`
	ExpiresAt       string `json:"expiresAt,omitempty"`
}

func boardView(b board.Board, userID string, order board.SortOrder) BoardView {
	phase := workflow.NormalizePhase(b.Phase)
	mode := workflow.NormalizeMode(b.Mode)
	columns := lo.Map(board.OrderedColumns(b), func(col board.Column, _ int) ColumnView {
		return columnView(col, userID, order)
	})
	return BoardView{
		ID:                  b.ID,
		Title:               b.Title,
		Phase:               string(phase),
		Mode:                string(mode),
		MultipleVotes:       b.MultipleVotes,
		CreatedAt:           b.CreatedAt,
		CardCreationAllowed: workflow.IsCardCreationAllowed(phase, mode),
		GroupingAllowed:     workflow.IsGroupingAllowed(phase, mode),
		Sort:                string(order),
		Columns:             columns,
	}
}

func columnView(col board.Column, userID string, order board.SortOrder) ColumnView {
	items := lo.Map(board.Compose(col, order), func(item board.Item, _ int) ItemView {
		if item.Kind == board.ItemGroup {
			return ItemView{Kind: string(item.Kind), Group: &GroupView{
				ID:        item.Group.ID,
				ColumnID:  col.ID,
				Name:      item.Group.Name,
				Votes:     item.Group.Votes,
				CreatedAt: item.Group.CreatedAt,
				Cards: lo.Map(item.Members, func(c board.Card, _ int) CardView {
					return cardView(c, col.ID, userID)
				}),
			}}
		}
		card := cardView(item.Card, col.ID, userID)
		return ItemView{Kind: string(item.Kind), Card: &card}
	})
	return ColumnView{ID: col.ID, Title: col.Title, Position: col.Position, Items: items}
}

func cardView(c board.Card, columnID, userID string) CardView {
	comments := lo.Map(lo.Values(c.Comments), func(cm board.Comment, _ int) CommentView {
		return commentView(cm)
	})
	sort.Slice(comments, func(i, j int) bool {
		if !comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].CreatedAt.Before(comments[j].CreatedAt)
		}
		return comments[i].ID < comments[j].ID
	})

	reactions := make([]ReactionView, 0, len(c.Reactions))
	for emoji, r := range c.Reactions {
		reactions = append(reactions, reactionView(emoji, r, userID))
	}
	sort.Slice(reactions, func(i, j int) bool { return reactions[i].Emoji < reactions[j].Emoji })

	return CardView{
		ID:        c.ID,
		ColumnID:  columnID,
		Content:   c.Content,
		Votes:     c.Votes,
		MyVote:    c.UserVote(userID),
		GroupID:   c.GroupID,
		CreatedBy: c.CreatedBy,
		CreatedAt: c.CreatedAt,
		Comments:  comments,
		Reactions: reactions,
	}
}

func commentView(c board.Comment) CommentView {
	return CommentView{ID: c.ID, Author: c.Author, Content: c.Content, CreatedAt: c.CreatedAt}
}

func reactionView(emoji string, r board.Reaction, userID string) ReactionView {
	users := r.Users
	if users == nil {
		users = []string{}
	}
	return ReactionView{Emoji: emoji, Count: r.Count, Users: users, Reacted: lo.Contains(users, userID)}
}
