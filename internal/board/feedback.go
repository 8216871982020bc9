package board

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const maxEmojiRunes = 8

// ToggleReaction adds userID to the reaction, or removes it when present.
// The second result is true when the user was removed.
func ToggleReaction(r Reaction, userID string) (Reaction, bool) {
	users := make([]string, 0, len(r.Users)+1)
	removed := false
	for _, user := range r.Users {
		if user == userID {
			removed = true
			continue
		}
		users = append(users, user)
	}
	if !removed {
		users = append(users, userID)
	}
	sort.Strings(users)
	return Reaction{Count: len(users), Users: users}, removed
}

func ValidateEmoji(emoji string) (string, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return "", fmt.Errorf("%w: emoji is required", ErrValidation)
	}
	if len([]rune(emoji)) > maxEmojiRunes || strings.Contains(emoji, "/") {
		return "", fmt.Errorf("%w: emoji is invalid", ErrValidation)
	}
	return emoji, nil
}

func NewComment(id, author, content string, now time.Time) (Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Comment{}, fmt.Errorf("%w: comment content is required", ErrValidation)
	}
	return Comment{ID: id, Content: content, Author: author, CreatedAt: now}, nil
}

// ValidateCardContent trims content and rejects it when blank.
func ValidateCardContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: card content is required", ErrValidation)
	}
	return content, nil
}
