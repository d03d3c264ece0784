package memory

import (
	"context"

	"placement_workflow/internal/domain/audit"

	"github.com/google/uuid"
)

type TransitionRepository struct {
	store *Store
}

func (r *TransitionRepository) Append(ctx context.Context, t *audit.Transition) error {
	defer r.store.lock(ctx)()
	if err := r.store.fail(OpTransitionAppend); err != nil {
		return err
	}
	r.store.data.seq++
	t.Sequence = r.store.data.seq
	r.store.data.transitions = append(r.store.data.transitions, *t)
	return nil
}

func (r *TransitionRepository) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]*audit.Transition, error) {
	defer r.store.lock(ctx)()
	if err := r.store.fail(OpTransitionList); err != nil {
		return nil, err
	}
	history := make([]*audit.Transition, 0)
	for _, t := range r.store.data.transitions {
		if t.SubjectID == subjectID {
			history = append(history, &t)
		}
	}
	return history, nil
}

func (r *TransitionRepository) LatestBySubject(ctx context.Context, subjectID uuid.UUID) (*audit.Transition, error) {
	defer r.store.lock(ctx)()
	if err := r.store.fail(OpTransitionList); err != nil {
		return nil, err
	}
	for i := len(r.store.data.transitions) - 1; i >= 0; i-- {
		if t := r.store.data.transitions[i]; t.SubjectID == subjectID {
			return &t, nil
		}
	}
	return nil, audit.ErrNoTransitions
}
