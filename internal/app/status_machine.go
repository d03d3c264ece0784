package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"placement_workflow/internal/domain/audit"
	"placement_workflow/internal/domain/subject"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Transactor runs fn so that every repository call made with the context it
// receives commits or rolls back together.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// StatusMachine enforces the approval workflow:
//
//	pending  -> approved
//	pending  -> rejected
//	rejected -> approved
//
// and is the only writer of subject status.
type StatusMachine struct {
	subjects subject.Repository
	audit    *AuditTrail
	fanout   *NotificationFanout
	tx       Transactor
	logger   *logrus.Entry
	now      func() time.Time
}

func NewStatusMachine(
	subjects subject.Repository,
	auditTrail *AuditTrail,
	fanout *NotificationFanout,
	tx Transactor,
	logger *logrus.Entry,
) *StatusMachine {
	return &StatusMachine{
		subjects: subjects,
		audit:    auditTrail,
		fanout:   fanout,
		tx:       tx,
		logger:   logger,
		now:      time.Now,
	}
}

// RequestTransition moves a subject to toStatus on behalf of actorID. reason
// is required for rejections and ignored otherwise.
//
// Requesting the status the subject already has returns the latest recorded
// transition without writing anything.
func (m *StatusMachine) RequestTransition(ctx context.Context, subjectID uuid.UUID, toStatus subject.Status, actorID, reason string) (*audit.Transition, error) {
	logCtx := m.logger.WithFields(logrus.Fields{
		"subject_id": subjectID,
		"to_status":  toStatus,
		"actor_id":   actorID,
	})

	if !toStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, toStatus)
	}
	reason = strings.TrimSpace(reason)
	if toStatus == subject.StatusRejected && reason == "" {
		return nil, ErrMissingRejectionReason
	}
	if toStatus != subject.StatusRejected {
		reason = ""
	}

	current, err := m.subjects.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, subject.ErrNotFound) {
			return nil, ErrSubjectNotFound
		}
		return nil, storageError("get subject", err)
	}

	if current.Status == toStatus {
		logCtx.Info("Subject already has requested status, returning latest transition")
		return m.latestTransition(ctx, current)
	}
	if !subject.CanTransition(current.Status, toStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current.Status, toStatus)
	}

	now := m.now().UTC()
	t := &audit.Transition{
		ID:         uuid.New(),
		SubjectID:  subjectID,
		FromStatus: current.Status,
		ToStatus:   toStatus,
		ActorID:    actorID,
		OccurredAt: now,
	}
	if reason != "" {
		t.Reason = sql.NullString{String: reason, Valid: true}
	}

	var updated *subject.Subject
	err = m.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		updated, err = m.subjects.UpdateStatusIf(txCtx, subjectID, subject.StatusUpdate{
			Expected: []subject.Status{current.Status},
			To:       toStatus,
			Reason:   reason,
			ActorID:  actorID,
			At:       now,
		})
		if err != nil {
			return err
		}
		return m.audit.Record(txCtx, t)
	})
	switch {
	case errors.Is(err, subject.ErrStatusMismatch):
		logCtx.Warn("Subject status changed while transition was in flight")
		return m.resolveConflict(ctx, subjectID, toStatus)
	case errors.Is(err, subject.ErrNotFound):
		return nil, ErrSubjectNotFound
	case err != nil:
		logCtx.WithError(err).Error("Failed to commit transition")
		return nil, storageError("commit transition", err)
	}

	logCtx.WithFields(logrus.Fields{
		"transition_id": t.ID,
		"from_status":   t.FromStatus,
	}).Info("Transition committed")

	// Delivery is best effort: the transition is already committed.
	if _, err := m.fanout.NotifyOnTransition(ctx, t, updated); err != nil {
		logCtx.WithError(err).Warn("Notification fan-out failed")
	}
	return t, nil
}

// resolveConflict decides the outcome of a lost conditional update: if the
// winner moved the subject to the status this request wanted, the request is
// a duplicate; otherwise it is no longer legal.
func (m *StatusMachine) resolveConflict(ctx context.Context, subjectID uuid.UUID, toStatus subject.Status) (*audit.Transition, error) {
	current, err := m.subjects.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, subject.ErrNotFound) {
			return nil, ErrSubjectNotFound
		}
		return nil, storageError("get subject", err)
	}
	if current.Status == toStatus {
		return m.latestTransition(ctx, current)
	}
	return nil, fmt.Errorf("%w: subject is now %s", ErrIllegalTransition, current.Status)
}

func (m *StatusMachine) latestTransition(ctx context.Context, s *subject.Subject) (*audit.Transition, error) {
	if s.Status == subject.StatusPending {
		return nil, fmt.Errorf("%w: subject is already pending", ErrIllegalTransition)
	}
	latest, err := m.audit.latest(ctx, s.ID)
	if err != nil {
		if errors.Is(err, audit.ErrNoTransitions) {
			// Status was set outside the workflow (e.g. imported records).
			return nil, fmt.Errorf("%w: subject is %s but has no recorded transition", ErrIllegalTransition, s.Status)
		}
		return nil, storageError("latest transition", err)
	}
	return latest, nil
}
