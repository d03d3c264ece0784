package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"placement_workflow/internal/domain/telegram"
)

var ErrChatAlreadyLinked = errors.New("telegram chat is linked to another user")

type PostgresTelegramLinkRepository struct {
	db *sql.DB
}

func NewPostgresTelegramLinkRepository(db *sql.DB) *PostgresTelegramLinkRepository {
	return &PostgresTelegramLinkRepository{db: db}
}

// Upsert binds the user to the chat, releasing the chat from any other user.
func (r *PostgresTelegramLinkRepository) Upsert(ctx context.Context, l *telegram.Link) error {
	return NewTransactor(r.db).WithinTransaction(ctx, func(ctx context.Context) error {
		db := conn(ctx, r.db)
		if _, err := db.ExecContext(ctx, `DELETE FROM telegram_links WHERE chat_id = $1 AND user_id <> $2`, l.ChatID, l.UserID); err != nil {
			return fmt.Errorf("error releasing telegram chat: %w", err)
		}
		query := `INSERT INTO telegram_links (user_id, chat_id, linked_at)
                   VALUES ($1, $2, $3)
                   ON CONFLICT (user_id) DO UPDATE SET chat_id = EXCLUDED.chat_id, linked_at = EXCLUDED.linked_at`
		if _, err := db.ExecContext(ctx, query, l.UserID, l.ChatID, l.LinkedAt); err != nil {
			if isUniqueViolation(err, "telegram_links_chat_id_key") {
				return ErrChatAlreadyLinked
			}
			return fmt.Errorf("error linking telegram user: %w", err)
		}
		return nil
	})
}

func (r *PostgresTelegramLinkRepository) GetByUserID(ctx context.Context, userID string) (*telegram.Link, error) {
	return r.getBy(ctx, `user_id = $1`, userID)
}

func (r *PostgresTelegramLinkRepository) GetByChatID(ctx context.Context, chatID int64) (*telegram.Link, error) {
	return r.getBy(ctx, `chat_id = $1`, chatID)
}

func (r *PostgresTelegramLinkRepository) getBy(ctx context.Context, where string, arg any) (*telegram.Link, error) {
	l := telegram.Link{}
	query := `SELECT user_id, chat_id, linked_at FROM telegram_links WHERE ` + where
	err := conn(ctx, r.db).QueryRowContext(ctx, query, arg).Scan(&l.UserID, &l.ChatID, &l.LinkedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, telegram.ErrLinkNotFound
		}
		return nil, fmt.Errorf("error getting telegram link: %w", err)
	}
	return &l, nil
}
