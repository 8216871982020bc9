package board

import (
	"sort"
	"time"

	"github.com/samber/lo"
)

type SortOrder string

const (
	SortByCreated SortOrder = "created"
	SortByVotes   SortOrder = "votes"
)

// ParseSortOrder falls back to SortByCreated for unknown values.
func ParseSortOrder(value string) SortOrder {
	if SortOrder(value) == SortByVotes {
		return SortByVotes
	}
	return SortByCreated
}

type ItemKind string

const (
	ItemCard  ItemKind = "card"
	ItemGroup ItemKind = "group"
)

// Item is one entry of a column's display order: a lone card or a group
// with its members.
type Item struct {
	Kind    ItemKind
	Card    Card
	Group   Group
	Members []Card
}

func (i Item) id() string {
	if i.Kind == ItemGroup {
		return i.Group.ID
	}
	return i.Card.ID
}

func (i Item) createdAt() time.Time {
	if i.Kind == ItemGroup {
		return i.Group.CreatedAt
	}
	return i.Card.CreatedAt
}

func (i Item) votes() int {
	if i.Kind == ItemGroup {
		return i.Group.Votes
	}
	return i.Card.Votes
}

// Compose merges a column's groups and ungrouped cards into one ordering.
func Compose(col Column, order SortOrder) []Item {
	members := lo.GroupBy(lo.Values(col.Cards), func(card Card) string {
		if _, ok := col.Groups[card.GroupID]; ok {
			return card.GroupID
		}
		return ""
	})

	items := make([]Item, 0, len(col.Groups)+len(members[""]))
	for _, card := range members[""] {
		items = append(items, Item{Kind: ItemCard, Card: card})
	}
	for id, group := range col.Groups {
		cards := members[id]
		sortCards(cards)
		items = append(items, Item{Kind: ItemGroup, Group: group, Members: cards})
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if order == SortByVotes && a.votes() != b.votes() {
			return a.votes() > b.votes()
		}
		if !a.createdAt().Equal(b.createdAt()) {
			return a.createdAt().Before(b.createdAt())
		}
		return a.id() < b.id()
	})
	return items
}

func sortCards(cards []Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		if !cards[i].CreatedAt.Equal(cards[j].CreatedAt) {
			return cards[i].CreatedAt.Before(cards[j].CreatedAt)
		}
		return cards[i].ID < cards[j].ID
	})
}

// OrderedColumns returns b's columns by position, then id.
func OrderedColumns(b Board) []Column {
	columns := lo.Values(b.Columns)
	sort.SliceStable(columns, func(i, j int) bool {
		if columns[i].Position != columns[j].Position {
			return columns[i].Position < columns[j].Position
		}
		return columns[i].ID < columns[j].ID
	})
	return columns
}
