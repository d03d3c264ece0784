package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"placement_workflow/internal/domain/audit"

	"github.com/google/uuid"
)

const transitionColumns = `seq, id, subject_id, from_status, to_status, actor_id, reason, occurred_at`

// PostgresTransitionRepository is append-only: there is no update or delete.
type PostgresTransitionRepository struct {
	db *sql.DB
}

func NewPostgresTransitionRepository(db *sql.DB) *PostgresTransitionRepository {
	return &PostgresTransitionRepository{db: db}
}

func scanTransition(row rowScanner) (*audit.Transition, error) {
	t := audit.Transition{}
	err := row.Scan(&t.Sequence, &t.ID, &t.SubjectID, &t.FromStatus, &t.ToStatus, &t.ActorID, &t.Reason, &t.OccurredAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PostgresTransitionRepository) Append(ctx context.Context, t *audit.Transition) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	query := `INSERT INTO subject_transitions (id, subject_id, from_status, to_status, actor_id, reason, occurred_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7)
               RETURNING seq`
	err := conn(ctx, r.db).QueryRowContext(ctx, query, t.ID, t.SubjectID, t.FromStatus, t.ToStatus,
		t.ActorID, t.Reason, t.OccurredAt).Scan(&t.Sequence)
	if err != nil {
		return fmt.Errorf("error appending transition: %w", err)
	}
	return nil
}

func (r *PostgresTransitionRepository) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]*audit.Transition, error) {
	query := `SELECT ` + transitionColumns + ` FROM subject_transitions WHERE subject_id = $1 ORDER BY seq ASC`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("error listing transitions: %w", err)
	}
	defer rows.Close()

	history := make([]*audit.Transition, 0)
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning transition: %w", err)
		}
		history = append(history, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transitions: %w", err)
	}
	return history, nil
}

func (r *PostgresTransitionRepository) LatestBySubject(ctx context.Context, subjectID uuid.UUID) (*audit.Transition, error) {
	query := `SELECT ` + transitionColumns + ` FROM subject_transitions WHERE subject_id = $1 ORDER BY seq DESC LIMIT 1`
	t, err := scanTransition(conn(ctx, r.db).QueryRowContext(ctx, query, subjectID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, audit.ErrNoTransitions
		}
		return nil, fmt.Errorf("error getting latest transition: %w", err)
	}
	return t, nil
}
