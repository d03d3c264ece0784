package memory

import (
	"context"
	"database/sql"
	"slices"
	"time"

	"placement_workflow/internal/domain/notification"

	"github.com/google/uuid"
)

type NotificationRepository struct {
	store *Store
}

func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	defer r.store.lock(ctx)()
	if err := r.store.fail(OpNotificationCreate); err != nil {
		return err
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	r.store.data.notifications[n.ID] = *n
	r.store.data.notifOrder = append(r.store.data.notifOrder, n.ID)
	return nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	defer r.store.lock(ctx)()
	n, ok := r.store.data.notifications[id]
	if !ok {
		return nil, notification.ErrNotFound
	}
	return &n, nil
}

func (r *NotificationRepository) ExistsUnread(ctx context.Context, recipientID string, t notification.Type, subjectID uuid.UUID, now time.Time) (bool, error) {
	defer r.store.lock(ctx)()
	if err := r.store.fail(OpNotificationExists); err != nil {
		return false, err
	}
	for _, n := range r.store.data.notifications {
		if n.RecipientID == recipientID && n.Type == t && !n.IsRead && !n.Expired(now) &&
			n.SubjectID.Valid && n.SubjectID.UUID == subjectID {
			return true, nil
		}
	}
	return false, nil
}

// visible walks the recipient's unexpired notifications, newest first.
func (r *NotificationRepository) visible(recipientID string, now time.Time, unreadOnly bool) []notification.Notification {
	var out []notification.Notification
	for i := len(r.store.data.notifOrder) - 1; i >= 0; i-- {
		n, ok := r.store.data.notifications[r.store.data.notifOrder[i]]
		if !ok || n.RecipientID != recipientID || n.Expired(now) {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	slices.SortStableFunc(out, func(a, b notification.Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

func (r *NotificationRepository) ListForRecipient(ctx context.Context, f notification.ListFilter) ([]*notification.Notification, int, error) {
	defer r.store.lock(ctx)()
	if err := r.store.fail(OpNotificationList); err != nil {
		return nil, 0, err
	}
	matched := r.visible(f.RecipientID, f.Now, f.UnreadOnly)
	total := len(matched)
	start := min(f.Offset, total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	items := make([]*notification.Notification, 0, end-start)
	for _, n := range matched[start:end] {
		items = append(items, &n)
	}
	return items, total, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID string, now time.Time) (int, error) {
	defer r.store.lock(ctx)()
	if err := r.store.fail(OpNotificationList); err != nil {
		return 0, err
	}
	return len(r.visible(recipientID, now, true)), nil
}

func (r *NotificationRepository) markRead(recipientID string, at time.Time, match func(notification.Notification) bool) int {
	changed := 0
	for id, n := range r.store.data.notifications {
		if n.RecipientID != recipientID || n.IsRead || !match(n) {
			continue
		}
		n.IsRead = true
		n.ReadAt = sql.NullTime{Time: at, Valid: true}
		r.store.data.notifications[id] = n
		changed++
	}
	return changed
}

func (r *NotificationRepository) MarkRead(ctx context.Context, recipientID string, ids []uuid.UUID, at time.Time) (int, error) {
	defer r.store.lock(ctx)()
	if err := r.store.fail(OpNotificationMark); err != nil {
		return 0, err
	}
	return r.markRead(recipientID, at, func(n notification.Notification) bool {
		return slices.Contains(ids, n.ID)
	}), nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int, error) {
	defer r.store.lock(ctx)()
	if err := r.store.fail(OpNotificationMark); err != nil {
		return 0, err
	}
	return r.markRead(recipientID, at, func(notification.Notification) bool { return true }), nil
}

func (r *NotificationRepository) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error {
	defer r.store.lock(ctx)()
	n, ok := r.store.data.notifications[id]
	if !ok {
		return notification.ErrNotFound
	}
	n.DeliveredAt = sql.NullTime{Time: at, Valid: true}
	r.store.data.notifications[id] = n
	return nil
}

func (r *NotificationRepository) RecordDeliveryFailure(ctx context.Context, id uuid.UUID, at time.Time) error {
	defer r.store.lock(ctx)()
	n, ok := r.store.data.notifications[id]
	if !ok {
		return notification.ErrNotFound
	}
	n.DeliveryAttempts++
	n.LastAttemptAt = sql.NullTime{Time: at, Valid: true}
	r.store.data.notifications[id] = n
	return nil
}

func (r *NotificationRepository) ListUndelivered(ctx context.Context, now time.Time, maxAttempts, limit int) ([]*notification.Notification, error) {
	defer r.store.lock(ctx)()
	if err := r.store.fail(OpNotificationList); err != nil {
		return nil, err
	}
	var out []*notification.Notification
	for _, id := range r.store.data.notifOrder {
		n, ok := r.store.data.notifications[id]
		if !ok || n.IsRead || n.DeliveredAt.Valid || n.Expired(now) {
			continue
		}
		if maxAttempts > 0 && n.DeliveryAttempts >= maxAttempts {
			continue
		}
		if _, linked := r.store.data.links[n.RecipientID]; !linked {
			continue
		}
		out = append(out, &n)
	}
	// Stable: insertion order breaks ties.
	slices.SortStableFunc(out, func(a, b *notification.Notification) int {
		switch {
		case !a.LastAttemptAt.Valid && !b.LastAttemptAt.Valid:
			return 0
		case !a.LastAttemptAt.Valid:
			return -1
		case !b.LastAttemptAt.Valid:
			return 1
		default:
			return a.LastAttemptAt.Time.Compare(b.LastAttemptAt.Time)
		}
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *NotificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	defer r.store.lock(ctx)()
	var removed int64
	kept := r.store.data.notifOrder[:0]
	for _, id := range r.store.data.notifOrder {
		if n := r.store.data.notifications[id]; n.Expired(now) {
			delete(r.store.data.notifications, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	r.store.data.notifOrder = kept
	return removed, nil
}
