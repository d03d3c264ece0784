package telegram

import (
	"context"
	"errors"
	"fmt"

	"placement_workflow/internal/app"
	"placement_workflow/internal/domain/notification"
	domainTelegram "placement_workflow/internal/domain/telegram"

	"github.com/google/uuid"
	"gopkg.in/telebot.v3"
)

// ReadMarker is the part of the notification service behind the
// "Mark as read" button.
type ReadMarker interface {
	MarkReadFromChat(ctx context.Context, chatID int64, notificationID uuid.UUID) error
}

func RegisterNotificationCallbacks(ctx context.Context, b *telebot.Bot, marker ReadMarker) {
	b.Handle(&telebot.InlineButton{Unique: domainTelegram.MarkReadUnique}, markReadHandler(ctx, marker))
}

func markReadHandler(ctx context.Context, marker ReadMarker) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		data := c.Callback().Data
		notificationID, err := uuid.Parse(data)
		if err != nil {
			c.Bot().OnError(fmt.Errorf("invalid notification id in callback: %q", data), c)
			return c.Respond(&telebot.CallbackResponse{Text: "Unknown notification."})
		}

		err = marker.MarkReadFromChat(ctx, c.Sender().ID, notificationID)
		switch {
		case errors.Is(err, notification.ErrNotFound):
			return c.Respond(&telebot.CallbackResponse{Text: "Unknown notification."})
		case errors.Is(err, domainTelegram.ErrLinkNotFound):
			return c.Respond(&telebot.CallbackResponse{Text: "This chat is not linked to a portal account."})
		case errors.Is(err, app.ErrStorageUnavailable):
			c.Bot().OnError(fmt.Errorf("error marking notification %s read: %w", notificationID, err), c)
			return c.Respond(&telebot.CallbackResponse{Text: "Please try again later."})
		case err != nil:
			c.Bot().OnError(fmt.Errorf("error marking notification %s read: %w", notificationID, err), c)
			return c.Respond(&telebot.CallbackResponse{Text: "An error occurred."})
		}
		return c.Respond(&telebot.CallbackResponse{Text: "Marked as read."})
	}
}
