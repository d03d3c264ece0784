package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("notification not found")

// ListFilter selects a recipient's notifications. Expired notifications
// (relative to Now) are never returned.
type ListFilter struct {
	RecipientID string
	UnreadOnly  bool
	Now         time.Time
	Offset      int
	Limit       int
}

// Repository defines the operations of the notification store.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	// ExistsUnread is the dedup check: an unread, unexpired notification of
	// type t for the recipient about the subject.
	ExistsUnread(ctx context.Context, recipientID string, t Type, subjectID uuid.UUID, now time.Time) (bool, error)
	// ListForRecipient returns newest first and the size of the filtered set.
	ListForRecipient(ctx context.Context, f ListFilter) ([]*Notification, int, error)
	CountUnread(ctx context.Context, recipientID string, now time.Time) (int, error)
	// MarkRead flips the given unread notifications of the recipient to read
	// and returns how many changed.
	MarkRead(ctx context.Context, recipientID string, ids []uuid.UUID, at time.Time) (int, error)
	MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error
	// RecordDeliveryFailure counts a failed push attempted at at.
	RecordDeliveryFailure(ctx context.Context, id uuid.UUID, at time.Time) error
	// ListUndelivered returns unread, unexpired notifications never pushed whose
	// recipient has a linked Telegram chat and which failed fewer than
	// maxAttempts times. Never-attempted notifications come first, then the
	// least recently attempted; ties go to the oldest.
	ListUndelivered(ctx context.Context, now time.Time, maxAttempts, limit int) ([]*Notification, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
