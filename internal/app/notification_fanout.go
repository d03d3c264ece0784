package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"placement_workflow/internal/domain/audit"
	"placement_workflow/internal/domain/notification"
	"placement_workflow/internal/domain/subject"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultNotificationTTL is how long a notification stays visible unless
// configured or overridden.
const DefaultNotificationTTL = 30 * 24 * time.Hour

// Dispatcher pushes a stored notification to an external channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, n *notification.Notification) error
}

// NotifyOption overrides fan-out defaults for a single call.
type NotifyOption func(*notifyOptions)

type notifyOptions struct {
	ttl       time.Duration
	expiresAt time.Time
}

// WithTTL sets expiry relative to creation time. A zero TTL means no expiry.
func WithTTL(ttl time.Duration) NotifyOption {
	return func(o *notifyOptions) { o.ttl = ttl }
}

// WithExpiresAt sets an absolute expiry.
func WithExpiresAt(at time.Time) NotifyOption {
	return func(o *notifyOptions) { o.expiresAt = at }
}

type notificationTemplate struct {
	notifType  notification.Type
	priority   notification.Priority
	title      string
	actionLink string
	message    func(s *subject.Subject, t *audit.Transition) string
}

var actionLinks = map[subject.Kind]string{
	subject.KindStudent:     "/student/profile",
	subject.KindAdmin:       "/admin/dashboard",
	subject.KindInstitution: "/institution/profile",
}

func templateFor(kind subject.Kind, to subject.Status) (notificationTemplate, bool) {
	switch to {
	case subject.StatusApproved:
		return notificationTemplate{
			notifType:  notification.TypeApproval,
			priority:   notification.PriorityMedium,
			title:      "Profile approved",
			actionLink: actionLinks[kind],
			message: func(s *subject.Subject, _ *audit.Transition) string {
				return fmt.Sprintf("Your %s profile has been approved.", s.Kind)
			},
		}, true
	case subject.StatusRejected:
		return notificationTemplate{
			notifType:  notification.TypeRejection,
			priority:   notification.PriorityHigh,
			title:      "Profile rejected",
			actionLink: actionLinks[kind],
			message: func(s *subject.Subject, t *audit.Transition) string {
				return fmt.Sprintf("Your %s profile has been rejected. Reason: %s", s.Kind, t.Reason.String)
			},
		}, true
	default:
		return notificationTemplate{}, false
	}
}

// recipientsFor returns the users told about a subject's transitions.
func recipientsFor(s *subject.Subject) []string {
	if s.OwnerID == "" {
		return nil
	}
	return []string{s.OwnerID}
}

// NotificationFanout turns committed transitions into notifications for the
// affected users.
type NotificationFanout struct {
	notifRepo  notification.Repository
	dispatcher Dispatcher
	ttl        time.Duration
	logger     *logrus.Entry
	now        func() time.Time
}

// NewNotificationFanout creates a fan-out. dispatcher may be nil, in which
// case notifications are only stored.
func NewNotificationFanout(nr notification.Repository, dispatcher Dispatcher, ttl time.Duration, logger *logrus.Entry) *NotificationFanout {
	return &NotificationFanout{
		notifRepo:  nr,
		dispatcher: dispatcher,
		ttl:        ttl,
		logger:     logger,
		now:        time.Now,
	}
}

// NotifyOnTransition stores one notification per recipient of the
// transition, skipping recipients that already hold an equivalent unread one.
// Store errors are returned but never affect the transition itself.
func (f *NotificationFanout) NotifyOnTransition(ctx context.Context, t *audit.Transition, s *subject.Subject, opts ...NotifyOption) ([]*notification.Notification, error) {
	logCtx := f.logger.WithFields(logrus.Fields{
		"subject_id":    s.ID,
		"transition_id": t.ID,
		"to_status":     t.ToStatus,
	})

	tmpl, ok := templateFor(s.Kind, t.ToStatus)
	if !ok {
		logCtx.Debug("No notification template for transition")
		return nil, nil
	}
	recipients := recipientsFor(s)
	if len(recipients) == 0 {
		logCtx.Warn("Subject has no owner, nothing to notify")
		return nil, nil
	}

	o := notifyOptions{ttl: f.ttl}
	for _, opt := range opts {
		opt(&o)
	}

	now := f.now().UTC()
	var created []*notification.Notification
	for _, recipientID := range recipients {
		exists, err := f.notifRepo.ExistsUnread(ctx, recipientID, tmpl.notifType, s.ID, now)
		if err != nil {
			return created, storageError("dedup check", err)
		}
		if exists {
			logCtx.WithField("recipient_id", recipientID).Info("Equivalent unread notification exists, skipping")
			continue
		}

		n := &notification.Notification{
			ID:           uuid.New(),
			RecipientID:  recipientID,
			SubjectID:    uuid.NullUUID{UUID: s.ID, Valid: true},
			TransitionID: uuid.NullUUID{UUID: t.ID, Valid: true},
			Title:        tmpl.title,
			Message:      tmpl.message(s, t),
			Type:         tmpl.notifType,
			Priority:     tmpl.priority,
			CreatedAt:    now,
		}
		if tmpl.actionLink != "" {
			n.ActionLink = sql.NullString{String: tmpl.actionLink, Valid: true}
		}
		switch {
		case !o.expiresAt.IsZero():
			n.ExpiresAt = sql.NullTime{Time: o.expiresAt.UTC(), Valid: true}
		case o.ttl > 0:
			n.ExpiresAt = sql.NullTime{Time: now.Add(o.ttl), Valid: true}
		}

		if err := f.notifRepo.Create(ctx, n); err != nil {
			return created, storageError("create notification", err)
		}
		created = append(created, n)
		logCtx.WithFields(logrus.Fields{
			"notification_id": n.ID,
			"recipient_id":    recipientID,
			"type":            n.Type,
		}).Info("Notification created")

		if f.dispatcher != nil {
			if err := f.dispatcher.Dispatch(ctx, n); err != nil {
				logCtx.WithError(err).WithField("notification_id", n.ID).Warn("Push delivery failed, left for redelivery")
			}
		}
	}
	return created, nil
}
