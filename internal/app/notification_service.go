// internal/app/notification_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"placement_workflow/internal/domain/notification"
	domainTelegram "placement_workflow/internal/domain/telegram"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3" // For telebot.ReplyMarkup and telebot.SendOptions
)

const (
	redeliveryBatchSize = 100
	// Pushes to a chat that keeps failing (bot blocked, chat deleted) stop
	// after this many attempts; the notification stays readable in-app.
	maxDeliveryAttempts = 5
)

// NotificationPage is one page of a recipient's notifications.
type NotificationPage struct {
	Items       []*notification.Notification
	TotalCount  int
	UnreadCount int
	Page        int
	PageSize    int
	HasNext     bool
	HasPrev     bool
}

// NotificationService covers the recipient side of notifications: listing,
// read state, push delivery over Telegram and the periodic sweeps.
type NotificationService struct {
	notifRepo      notification.Repository
	links          domainTelegram.LinkRepository
	telegramClient domainTelegram.Client // nil when the bot is disabled
	logger         *logrus.Entry
	now            func() time.Time
}

func NewNotificationService(
	nr notification.Repository,
	links domainTelegram.LinkRepository,
	tc domainTelegram.Client,
	logger *logrus.Entry,
) *NotificationService {
	return &NotificationService{
		notifRepo:      nr,
		links:          links,
		telegramClient: tc,
		logger:         logger,
		now:            time.Now,
	}
}

// List returns the recipient's unexpired notifications, newest first.
func (s *NotificationService) List(ctx context.Context, recipientID string, unreadOnly bool, page, pageSize int) (*NotificationPage, error) {
	if recipientID == "" {
		return nil, invalidInput("recipient is required")
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	now := s.now().UTC()

	items, total, err := s.notifRepo.ListForRecipient(ctx, notification.ListFilter{
		RecipientID: recipientID,
		UnreadOnly:  unreadOnly,
		Now:         now,
		Offset:      (page - 1) * pageSize,
		Limit:       pageSize,
	})
	if err != nil {
		return nil, storageError("list notifications", err)
	}
	unread, err := s.notifRepo.CountUnread(ctx, recipientID, now)
	if err != nil {
		return nil, storageError("count unread notifications", err)
	}
	return &NotificationPage{
		Items:       items,
		TotalCount:  total,
		UnreadCount: unread,
		Page:        page,
		PageSize:    pageSize,
		HasPrev:     page > 1,
		HasNext:     page*pageSize < total,
	}, nil
}

// UnreadCount excludes expired notifications.
func (s *NotificationService) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	count, err := s.notifRepo.CountUnread(ctx, recipientID, s.now().UTC())
	if err != nil {
		return 0, storageError("count unread notifications", err)
	}
	return count, nil
}

// MarkRead marks the recipient's notifications read. IDs belonging to other
// recipients or already read are ignored.
func (s *NotificationService) MarkRead(ctx context.Context, recipientID string, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, invalidInput("at least one notification id is required")
	}
	changed, err := s.notifRepo.MarkRead(ctx, recipientID, ids, s.now().UTC())
	if err != nil {
		return 0, storageError("mark notifications read", err)
	}
	return changed, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	changed, err := s.notifRepo.MarkAllRead(ctx, recipientID, s.now().UTC())
	if err != nil {
		return 0, storageError("mark all notifications read", err)
	}
	return changed, nil
}

// MarkReadFromChat handles the "Mark as read" button. The chat must be linked
// to the notification's recipient; notifications of other users are reported
// as notification.ErrNotFound. Pressing the button twice is not an error.
func (s *NotificationService) MarkReadFromChat(ctx context.Context, chatID int64, notificationID uuid.UUID) error {
	link, err := s.links.GetByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, domainTelegram.ErrLinkNotFound) {
			return err
		}
		return storageError("get telegram link", err)
	}
	changed, err := s.MarkRead(ctx, link.UserID, []uuid.UUID{notificationID})
	if err != nil || changed > 0 {
		return err
	}

	// Nothing changed: either already read by this user or not theirs at all.
	n, err := s.notifRepo.GetByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			return err
		}
		return storageError("get notification", err)
	}
	if n.RecipientID != link.UserID {
		return notification.ErrNotFound
	}
	return nil
}

// Dispatch pushes n to the recipient's linked Telegram chat. Recipients
// without a link are skipped; the notification stays in-app only.
func (s *NotificationService) Dispatch(ctx context.Context, n *notification.Notification) error {
	_, err := s.push(ctx, n)
	return err
}

// push reports whether n was actually sent.
func (s *NotificationService) push(ctx context.Context, n *notification.Notification) (bool, error) {
	if s.telegramClient == nil {
		return false, nil
	}
	link, err := s.links.GetByUserID(ctx, n.RecipientID)
	if err != nil {
		if errors.Is(err, domainTelegram.ErrLinkNotFound) {
			s.logger.WithField("recipient_id", n.RecipientID).Debug("Recipient has no telegram link, skipping push")
			return false, nil
		}
		return false, fmt.Errorf("failed to get telegram link for %s: %w", n.RecipientID, err)
	}

	replyMarkup := &telebot.ReplyMarkup{}
	btnRead := replyMarkup.Data("Mark as read", domainTelegram.MarkReadUnique, n.ID.String())
	replyMarkup.Inline(replyMarkup.Row(btnRead))

	text := fmt.Sprintf("%s\n\n%s", n.Title, n.Message)
	if err := s.telegramClient.SendMessage(link.ChatID, text, &telebot.SendOptions{ReplyMarkup: replyMarkup}); err != nil {
		if recErr := s.notifRepo.RecordDeliveryFailure(ctx, n.ID, s.now().UTC()); recErr != nil {
			s.logger.WithError(recErr).WithField("notification_id", n.ID).Error("Failed to record delivery failure")
		}
		return false, fmt.Errorf("failed to send notification %s: %w", n.ID, err)
	}

	if err := s.notifRepo.MarkDelivered(ctx, n.ID, s.now().UTC()); err != nil {
		// Pushed but not recorded: the next sweep may push it again.
		s.logger.WithError(err).WithField("notification_id", n.ID).Error("Failed to record delivery")
	}
	return true, nil
}

// RedeliverPending retries the push of undelivered, unread, unexpired
// notifications, least recently attempted first, giving up on a notification
// after maxDeliveryAttempts failures. Returns how many were pushed.
func (s *NotificationService) RedeliverPending(ctx context.Context) (int, error) {
	if s.telegramClient == nil {
		return 0, nil
	}
	pending, err := s.notifRepo.ListUndelivered(ctx, s.now().UTC(), maxDeliveryAttempts, redeliveryBatchSize)
	if err != nil {
		return 0, storageError("list undelivered notifications", err)
	}

	delivered := 0
	for _, n := range pending {
		sent, err := s.push(ctx, n)
		if err != nil {
			s.logger.WithError(err).WithField("notification_id", n.ID).Warn("Redelivery failed")
			continue
		}
		if sent {
			delivered++
		}
	}
	return delivered, nil
}

// CleanupExpired removes notifications past their expiry.
func (s *NotificationService) CleanupExpired(ctx context.Context) (int64, error) {
	removed, err := s.notifRepo.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, storageError("delete expired notifications", err)
	}
	return removed, nil
}
