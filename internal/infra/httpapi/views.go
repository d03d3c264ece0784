package httpapi

import (
	"database/sql"
	"time"

	"placement_workflow/internal/domain/audit"
	"placement_workflow/internal/domain/notification"
	"placement_workflow/internal/domain/subject"

	"github.com/google/uuid"
)

type subjectView struct {
	ID              uuid.UUID        `json:"id"`
	Kind            subject.Kind     `json:"kind"`
	OwnerID         string           `json:"ownerId"`
	Status          subject.Status   `json:"status"`
	StatusReason    string           `json:"statusReason,omitempty"`
	StatusChangedAt *time.Time       `json:"statusChangedAt,omitempty"`
	StatusChangedBy string           `json:"statusChangedBy,omitempty"`
	Metadata        subject.Metadata `json:"metadata"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

type transitionView struct {
	ID         uuid.UUID      `json:"id"`
	Sequence   int64          `json:"sequence"`
	SubjectID  uuid.UUID      `json:"subjectId"`
	FromStatus subject.Status `json:"fromStatus"`
	ToStatus   subject.Status `json:"toStatus"`
	ActorID    string         `json:"actorId"`
	Reason     string         `json:"reason,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

type notificationView struct {
	ID          uuid.UUID             `json:"id"`
	RecipientID string                `json:"recipientId"`
	SubjectID   *uuid.UUID            `json:"subjectId,omitempty"`
	Title       string                `json:"title"`
	Message     string                `json:"message"`
	Type        notification.Type     `json:"type"`
	Priority    notification.Priority `json:"priority"`
	IsRead      bool                  `json:"isRead"`
	ReadAt      *time.Time            `json:"readAt,omitempty"`
	ActionLink  string                `json:"actionLink,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
	ExpiresAt   *time.Time            `json:"expiresAt,omitempty"`
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func toSubjectView(s *subject.Subject) subjectView {
	return subjectView{
		ID:              s.ID,
		Kind:            s.Kind,
		OwnerID:         s.OwnerID,
		Status:          s.Status,
		StatusReason:    s.StatusReason.String,
		StatusChangedAt: timePtr(s.StatusChangedAt),
		StatusChangedBy: s.StatusChangedBy.String,
		Metadata:        s.Metadata,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func toSubjectViews(items []*subject.Subject) []subjectView {
	out := make([]subjectView, 0, len(items))
	for _, s := range items {
		out = append(out, toSubjectView(s))
	}
	return out
}

func toTransitionView(t *audit.Transition) transitionView {
	return transitionView{
		ID:         t.ID,
		Sequence:   t.Sequence,
		SubjectID:  t.SubjectID,
		FromStatus: t.FromStatus,
		ToStatus:   t.ToStatus,
		ActorID:    t.ActorID,
		Reason:     t.Reason.String,
		OccurredAt: t.OccurredAt,
	}
}

func toNotificationView(n *notification.Notification) notificationView {
	v := notificationView{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		Title:       n.Title,
		Message:     n.Message,
		Type:        n.Type,
		Priority:    n.Priority,
		IsRead:      n.IsRead,
		ReadAt:      timePtr(n.ReadAt),
		ActionLink:  n.ActionLink.String,
		CreatedAt:   n.CreatedAt,
		ExpiresAt:   timePtr(n.ExpiresAt),
	}
	if n.SubjectID.Valid {
		v.SubjectID = &n.SubjectID.UUID
	}
	return v
}
