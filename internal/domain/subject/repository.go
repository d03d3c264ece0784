package subject

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("subject not found")
	// ErrStatusMismatch is returned by UpdateStatusIf when the stored status
	// is not one of the expected statuses.
	ErrStatusMismatch = errors.New("subject status changed concurrently")
)

// SortField names a column ListFilter can order by.
type SortField string

const (
	SortCreatedAt       SortField = "createdAt"
	SortName            SortField = "name"
	SortEmail           SortField = "email"
	SortStatus          SortField = "status"
	SortStatusChangedAt SortField = "statusChangedAt"
)

// ListFilter selects a window of subjects. Zero values mean "any".
type ListFilter struct {
	Kind     Kind
	Status   Status
	Search   string // case-insensitive substring of name, email or institution
	SortBy   SortField
	SortDesc bool
	Offset   int
	Limit    int
}

// StatusUpdate describes a conditional status write.
type StatusUpdate struct {
	Expected []Status
	To       Status
	Reason   string
	ActorID  string
	At       time.Time
}

// Repository defines the operations for persisting and retrieving subjects.
type Repository interface {
	Create(ctx context.Context, s *Subject) error
	GetByID(ctx context.Context, id uuid.UUID) (*Subject, error)
	// UpdateStatusIf sets the status only if the stored status is in
	// upd.Expected, returning ErrStatusMismatch otherwise.
	UpdateStatusIf(ctx context.Context, id uuid.UUID, upd StatusUpdate) (*Subject, error)
	// List returns the requested window and the size of the whole filtered set.
	List(ctx context.Context, f ListFilter) ([]*Subject, int, error)
}
