package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Subject status is stored as free text: rows imported from older systems
// carry legacy values that are normalized on read.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS subjects (
		id                UUID PRIMARY KEY,
		kind              TEXT NOT NULL,
		owner_id          TEXT NOT NULL,
		status            TEXT NOT NULL DEFAULT 'pending',
		status_reason     TEXT,
		status_changed_at TIMESTAMPTZ,
		status_changed_by TEXT,
		metadata          JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subjects_kind_status ON subjects (kind, status)`,
	`CREATE INDEX IF NOT EXISTS idx_subjects_created_at ON subjects (created_at)`,

	`CREATE TABLE IF NOT EXISTS subject_transitions (
		seq         BIGSERIAL PRIMARY KEY,
		id          UUID NOT NULL UNIQUE,
		subject_id  UUID NOT NULL REFERENCES subjects (id) ON DELETE CASCADE,
		from_status TEXT NOT NULL,
		to_status   TEXT NOT NULL,
		actor_id    TEXT NOT NULL,
		reason      TEXT,
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subject_transitions_subject ON subject_transitions (subject_id, seq)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id            UUID PRIMARY KEY,
		recipient_id  TEXT NOT NULL,
		subject_id    UUID REFERENCES subjects (id) ON DELETE SET NULL,
		transition_id UUID,
		title         TEXT NOT NULL,
		message       TEXT NOT NULL,
		type          TEXT NOT NULL,
		priority      TEXT NOT NULL DEFAULT 'medium',
		is_read       BOOLEAN NOT NULL DEFAULT FALSE,
		read_at       TIMESTAMPTZ,
		action_link   TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at    TIMESTAMPTZ,
		delivered_at  TIMESTAMPTZ
	)`,
	`ALTER TABLE notifications ADD COLUMN IF NOT EXISTS delivery_attempts INT NOT NULL DEFAULT 0`,
	`ALTER TABLE notifications ADD COLUMN IF NOT EXISTS last_attempt_at TIMESTAMPTZ`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications (recipient_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_dedup ON notifications (recipient_id, type, subject_id) WHERE NOT is_read`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_undelivered ON notifications (last_attempt_at NULLS FIRST, created_at) WHERE delivered_at IS NULL AND NOT is_read`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_expires_at ON notifications (expires_at) WHERE expires_at IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS telegram_links (
		user_id   TEXT PRIMARY KEY,
		chat_id   BIGINT NOT NULL,
		linked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT telegram_links_chat_id_key UNIQUE (chat_id)
	)`,
}

// EnsureSchema creates the tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
