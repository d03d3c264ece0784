package memory

import (
	"context"

	"placement_workflow/internal/domain/telegram"
)

type LinkRepository struct {
	store *Store
}

func (r *LinkRepository) Upsert(ctx context.Context, l *telegram.Link) error {
	defer r.store.lock(ctx)()
	// A chat receives one user's notifications.
	for userID, existing := range r.store.data.links {
		if existing.ChatID == l.ChatID && userID != l.UserID {
			delete(r.store.data.links, userID)
		}
	}
	r.store.data.links[l.UserID] = *l
	return nil
}

func (r *LinkRepository) GetByUserID(ctx context.Context, userID string) (*telegram.Link, error) {
	defer r.store.lock(ctx)()
	if err := r.store.fail(OpLinkGet); err != nil {
		return nil, err
	}
	l, ok := r.store.data.links[userID]
	if !ok {
		return nil, telegram.ErrLinkNotFound
	}
	return &l, nil
}

func (r *LinkRepository) GetByChatID(ctx context.Context, chatID int64) (*telegram.Link, error) {
	defer r.store.lock(ctx)()
	if err := r.store.fail(OpLinkGet); err != nil {
		return nil, err
	}
	for _, l := range r.store.data.links {
		if l.ChatID == chatID {
			return &l, nil
		}
	}
	return nil, telegram.ErrLinkNotFound
}
