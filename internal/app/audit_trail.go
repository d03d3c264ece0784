package app

import (
	"context"
	"errors"

	"placement_workflow/internal/domain/audit"
	"placement_workflow/internal/domain/subject"

	"github.com/google/uuid"
)

// AuditTrail is the append-only record of committed transitions.
type AuditTrail struct {
	transitions audit.Repository
	subjects    subject.Repository
}

func NewAuditTrail(transitions audit.Repository, subjects subject.Repository) *AuditTrail {
	return &AuditTrail{transitions: transitions, subjects: subjects}
}

// Record appends t. It is only called by the StatusMachine, inside the same
// transaction as the subject status update.
func (a *AuditTrail) Record(ctx context.Context, t *audit.Transition) error {
	return a.transitions.Append(ctx, t)
}

// History returns the transitions of a subject, oldest first.
func (a *AuditTrail) History(ctx context.Context, subjectID uuid.UUID) ([]*audit.Transition, error) {
	if _, err := a.subjects.GetByID(ctx, subjectID); err != nil {
		if errors.Is(err, subject.ErrNotFound) {
			return nil, ErrSubjectNotFound
		}
		return nil, storageError("get subject", err)
	}
	history, err := a.transitions.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, storageError("list transitions", err)
	}
	return history, nil
}

// latest returns the most recent transition, or audit.ErrNoTransitions.
func (a *AuditTrail) latest(ctx context.Context, subjectID uuid.UUID) (*audit.Transition, error) {
	return a.transitions.LatestBySubject(ctx, subjectID)
}
