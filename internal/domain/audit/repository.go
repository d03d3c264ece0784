package audit

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNoTransitions = errors.New("no transitions recorded for subject")

// Repository is the append-only store of transitions.
type Repository interface {
	Append(ctx context.Context, t *Transition) error
	// ListBySubject returns transitions oldest first, in commit order.
	ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]*Transition, error)
	LatestBySubject(ctx context.Context, subjectID uuid.UUID) (*Transition, error)
}
