// internal/infra/database/postgres_notification_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"placement_workflow/internal/domain/notification"

	"github.com/google/uuid"
	"github.com/lib/pq" // For pq.Array
)

const notificationColumns = `n.id, n.recipient_id, n.subject_id, n.transition_id, n.title, n.message, n.type, n.priority,
	n.is_read, n.read_at, n.action_link, n.created_at, n.expires_at, n.delivered_at, n.delivery_attempts, n.last_attempt_at`

// notExpiredSQL takes the current time as its single placeholder.
const notExpiredSQL = `(n.expires_at IS NULL OR n.expires_at >= $%d)`

type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func scanNotification(row rowScanner) (*notification.Notification, error) {
	n := notification.Notification{}
	err := row.Scan(&n.ID, &n.RecipientID, &n.SubjectID, &n.TransitionID, &n.Title, &n.Message, &n.Type, &n.Priority,
		&n.IsRead, &n.ReadAt, &n.ActionLink, &n.CreatedAt, &n.ExpiresAt, &n.DeliveredAt, &n.DeliveryAttempts, &n.LastAttemptAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func scanNotifications(rows *sql.Rows) ([]*notification.Notification, error) {
	defer rows.Close()
	out := make([]*notification.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return out, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	query := `INSERT INTO notifications (id, recipient_id, subject_id, transition_id, title, message, type, priority,
                   is_read, read_at, action_link, created_at, expires_at, delivered_at, delivery_attempts, last_attempt_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := conn(ctx, r.db).ExecContext(ctx, query, n.ID, n.RecipientID, n.SubjectID, n.TransitionID, n.Title, n.Message,
		n.Type, n.Priority, n.IsRead, n.ReadAt, n.ActionLink, n.CreatedAt, n.ExpiresAt, n.DeliveredAt,
		n.DeliveryAttempts, n.LastAttemptAt)
	if err != nil {
		return fmt.Errorf("error creating notification: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications n WHERE n.id = $1`
	n, err := scanNotification(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notification.ErrNotFound
		}
		return nil, fmt.Errorf("error getting notification by ID: %w", err)
	}
	return n, nil
}

func (r *PostgresNotificationRepository) ExistsUnread(ctx context.Context, recipientID string, t notification.Type, subjectID uuid.UUID, now time.Time) (bool, error) {
	query := `SELECT EXISTS (
                   SELECT 1 FROM notifications n
                   WHERE n.recipient_id = $1 AND n.type = $2 AND n.subject_id = $3 AND NOT n.is_read
                     AND ` + fmt.Sprintf(notExpiredSQL, 4) + `)`
	var exists bool
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, recipientID, t, subjectID, now).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking for unread notification: %w", err)
	}
	return exists, nil
}

func (r *PostgresNotificationRepository) ListForRecipient(ctx context.Context, f notification.ListFilter) ([]*notification.Notification, int, error) {
	where := `n.recipient_id = $1 AND ` + fmt.Sprintf(notExpiredSQL, 2)
	if f.UnreadOnly {
		where += ` AND NOT n.is_read`
	}
	db := conn(ctx, r.db)

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications n WHERE `+where, f.RecipientID, f.Now).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting notifications: %w", err)
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications n WHERE ` + where +
		` ORDER BY n.created_at DESC, n.id DESC LIMIT $3 OFFSET $4`
	limit := sql.NullInt64{Int64: int64(f.Limit), Valid: f.Limit > 0} // NULL means no limit
	rows, err := db.QueryContext(ctx, query, f.RecipientID, f.Now, limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing notifications: %w", err)
	}
	items, err := scanNotifications(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *PostgresNotificationRepository) CountUnread(ctx context.Context, recipientID string, now time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM notifications n WHERE n.recipient_id = $1 AND NOT n.is_read AND ` + fmt.Sprintf(notExpiredSQL, 2)
	var count int
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, recipientID, now).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting unread notifications: %w", err)
	}
	return count, nil
}

func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, recipientID string, ids []uuid.UUID, at time.Time) (int, error) {
	query := `UPDATE notifications SET is_read = TRUE, read_at = $3
               WHERE recipient_id = $1 AND id = ANY($2::uuid[]) AND NOT is_read`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, recipientID, pq.Array(uuidStrings(ids)), at)
	if err != nil {
		return 0, fmt.Errorf("error marking notifications read: %w", err)
	}
	changed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading affected rows: %w", err)
	}
	return int(changed), nil
}

func (r *PostgresNotificationRepository) MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int, error) {
	query := `UPDATE notifications SET is_read = TRUE, read_at = $2 WHERE recipient_id = $1 AND NOT is_read`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, recipientID, at)
	if err != nil {
		return 0, fmt.Errorf("error marking all notifications read: %w", err)
	}
	changed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading affected rows: %w", err)
	}
	return int(changed), nil
}

func (r *PostgresNotificationRepository) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE notifications SET delivered_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("error marking notification delivered: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notification.ErrNotFound
	}
	return nil
}

func (r *PostgresNotificationRepository) RecordDeliveryFailure(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE notifications SET delivery_attempts = delivery_attempts + 1, last_attempt_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("error recording delivery failure: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notification.ErrNotFound
	}
	return nil
}

func (r *PostgresNotificationRepository) ListUndelivered(ctx context.Context, now time.Time, maxAttempts, limit int) ([]*notification.Notification, error) {
	query := `SELECT ` + notificationColumns + `
               FROM notifications n
               JOIN telegram_links l ON l.user_id = n.recipient_id
               WHERE n.delivered_at IS NULL AND NOT n.is_read AND ` + fmt.Sprintf(notExpiredSQL, 1) + `
                 AND ($2::int IS NULL OR n.delivery_attempts < $2)
               ORDER BY n.last_attempt_at ASC NULLS FIRST, n.created_at ASC, n.id ASC
               LIMIT $3`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, now,
		sql.NullInt64{Int64: int64(maxAttempts), Valid: maxAttempts > 0},
		sql.NullInt64{Int64: int64(limit), Valid: limit > 0})
	if err != nil {
		return nil, fmt.Errorf("error listing undelivered notifications: %w", err)
	}
	return scanNotifications(rows)
}

func (r *PostgresNotificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM notifications WHERE expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("error deleting expired notifications: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading affected rows: %w", err)
	}
	return removed, nil
}
