package notification

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Notification is a message delivered to exactly one recipient.
type Notification struct {
	ID           uuid.UUID
	RecipientID  string
	SubjectID    uuid.NullUUID
	TransitionID uuid.NullUUID // originating transition, for traceability only
	Title        string
	Message      string
	Type         Type
	Priority     Priority
	IsRead       bool // false -> true only
	ReadAt       sql.NullTime
	ActionLink   sql.NullString
	CreatedAt    time.Time
	ExpiresAt    sql.NullTime
	DeliveredAt  sql.NullTime // set once pushed to an external channel

	DeliveryAttempts int // failed pushes so far
	LastAttemptAt    sql.NullTime
}

// Expired reports whether the notification is past its expiry at now.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt.Valid && n.ExpiresAt.Time.Before(now)
}
