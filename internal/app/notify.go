package app

import (
	"context"
	"log"
)

// Notifier delivers a user-facing message. Delivery is fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, boardID, userID, message string)
}

// LogNotifier writes notifications to the process log.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, boardID, userID, message string) {
	log.Printf(`{"request_id":"%s","event":"notify","board_id":"%s","user_id":"%s","message":%q}`,
		requestIDFrom(ctx), boardID, userID, message)
}
