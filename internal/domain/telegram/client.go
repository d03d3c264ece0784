package telegram

import (
	"context"
	"errors"
	"time"

	"gopkg.in/telebot.v3"
)

// MarkReadUnique is the callback identifier of the "Mark as read" button
// attached to pushed notifications. The button payload is the notification ID.
const MarkReadUnique = "mark_read"

var ErrLinkNotFound = errors.New("telegram link not found")

// Client defines an interface for sending messages via a Telegram bot.
// This helps in decoupling the application logic from the specific bot library.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}

// Link binds a platform user to the Telegram chat that receives their notifications.
type Link struct {
	UserID   string
	ChatID   int64
	LinkedAt time.Time
}

type LinkRepository interface {
	// Upsert creates the link or rebinds the user to a new chat.
	Upsert(ctx context.Context, l *Link) error
	GetByUserID(ctx context.Context, userID string) (*Link, error)
	GetByChatID(ctx context.Context, chatID int64) (*Link, error)
}
