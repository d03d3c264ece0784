// internal/infra/database/postgres_subject_repository.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"placement_workflow/internal/domain/subject"

	"github.com/google/uuid"
	"github.com/lib/pq" // For pq.Array
)

const subjectColumns = `id, kind, owner_id, status, status_reason, status_changed_at, status_changed_by, metadata, created_at, updated_at`

// normalizedStatusSQL folds a stored status the same way normalizeStatus does
// before its table lookup.
const normalizedStatusSQL = `LOWER(REPLACE(REPLACE(TRIM(status), ' ', '_'), '-', '_'))`

var sortColumns = map[subject.SortField]string{
	subject.SortCreatedAt:       "created_at",
	subject.SortName:            "LOWER(metadata->>'name')",
	subject.SortEmail:           "LOWER(metadata->>'email')",
	subject.SortStatus:          canonicalStatusSQL,
	subject.SortStatusChangedAt: "status_changed_at",
}

type PostgresSubjectRepository struct {
	db *sql.DB
}

func NewPostgresSubjectRepository(db *sql.DB) *PostgresSubjectRepository {
	return &PostgresSubjectRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubject(row rowScanner) (*subject.Subject, error) {
	var (
		s         subject.Subject
		rawStatus string
		metadata  []byte
	)
	err := row.Scan(&s.ID, &s.Kind, &s.OwnerID, &rawStatus, &s.StatusReason, &s.StatusChangedAt,
		&s.StatusChangedBy, &metadata, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if s.Status, err = normalizeStatus(rawStatus); err != nil {
		return nil, fmt.Errorf("subject %s: %w", s.ID, err)
	}
	if err := json.Unmarshal(metadata, &s.Metadata); err != nil {
		return nil, fmt.Errorf("error decoding metadata of subject %s: %w", s.ID, err)
	}
	return &s, nil
}

func (r *PostgresSubjectRepository) Create(ctx context.Context, s *subject.Subject) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	metadata, err := json.Marshal(s.Metadata)
	if err != nil {
		return fmt.Errorf("error encoding subject metadata: %w", err)
	}
	query := `INSERT INTO subjects (id, kind, owner_id, status, status_reason, status_changed_at, status_changed_by, metadata, created_at, updated_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = conn(ctx, r.db).ExecContext(ctx, query, s.ID, s.Kind, s.OwnerID, s.Status, s.StatusReason,
		s.StatusChangedAt, s.StatusChangedBy, metadata, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating subject: %w", err)
	}
	return nil
}

func (r *PostgresSubjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*subject.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE id = $1`
	s, err := scanSubject(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, subject.ErrNotFound
		}
		return nil, fmt.Errorf("error getting subject by ID: %w", err)
	}
	return s, nil
}

// UpdateStatusIf is a single conditional UPDATE: concurrent writers of the
// same row serialize on its lock and the loser re-evaluates the status check.
func (r *PostgresSubjectRepository) UpdateStatusIf(ctx context.Context, id uuid.UUID, upd subject.StatusUpdate) (*subject.Subject, error) {
	query := `UPDATE subjects
               SET status = $2, status_reason = $3, status_changed_at = $4, status_changed_by = $5, updated_at = $4
               WHERE id = $1 AND ` + normalizedStatusSQL + ` = ANY($6)
               RETURNING ` + subjectColumns
	reason := sql.NullString{String: upd.Reason, Valid: upd.Reason != ""}
	db := conn(ctx, r.db)
	s, err := scanSubject(db.QueryRowContext(ctx, query, id, upd.To, reason, upd.At, upd.ActorID,
		pq.Array(storedSpellings(upd.Expected...))))
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("error updating subject status: %w", err)
	}

	var exists bool
	if err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM subjects WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("error checking subject existence: %w", err)
	}
	if !exists {
		return nil, subject.ErrNotFound
	}
	return nil, subject.ErrStatusMismatch
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// buildListQuery returns the page query and the count query sharing the
// same WHERE clause, and the arguments of the page query. The count query
// uses the leading countArgs of them.
func buildListQuery(f subject.ListFilter) (pageQuery, countQuery string, args []any, countArgs int, err error) {
	var where []string
	if f.Kind != "" {
		args = append(args, f.Kind)
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, pq.Array(storedSpellings(f.Status)))
		where = append(where, fmt.Sprintf("%s = ANY($%d)", normalizedStatusSQL, len(args)))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(metadata->>'name' ILIKE $%d OR metadata->>'email' ILIKE $%d OR metadata->>'institution' ILIKE $%d)", n, n, n))
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}
	countQuery = `SELECT COUNT(*) FROM subjects` + whereSQL
	countArgs = len(args)

	sortBy := f.SortBy
	if sortBy == "" {
		sortBy = subject.SortCreatedAt
	}
	column, ok := sortColumns[sortBy]
	if !ok {
		return "", "", nil, 0, fmt.Errorf("unsupported sort field %q", f.SortBy)
	}
	direction := "ASC NULLS LAST"
	if f.SortDesc {
		direction = "DESC NULLS LAST"
	}

	pageQuery = `SELECT ` + subjectColumns + ` FROM subjects` + whereSQL +
		fmt.Sprintf(" ORDER BY %s %s, created_at ASC, id ASC", column, direction)
	if f.Limit > 0 {
		args = append(args, f.Limit)
		pageQuery += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		pageQuery += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return pageQuery, countQuery, args, countArgs, nil
}

func (r *PostgresSubjectRepository) List(ctx context.Context, f subject.ListFilter) ([]*subject.Subject, int, error) {
	pageQuery, countQuery, args, countArgs, err := buildListQuery(f)
	if err != nil {
		return nil, 0, err
	}
	db := conn(ctx, r.db)

	var total int
	if err := db.QueryRowContext(ctx, countQuery, args[:countArgs]...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting subjects: %w", err)
	}

	rows, err := db.QueryContext(ctx, pageQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing subjects: %w", err)
	}
	defer rows.Close()

	subjects := make([]*subject.Subject, 0)
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("error scanning subject: %w", err)
		}
		subjects = append(subjects, s)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating subjects: %w", err)
	}
	return subjects, total, nil
}
