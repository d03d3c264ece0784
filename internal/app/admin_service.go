package app

import (
	"context"
	"strings"
	"time"

	"placement_workflow/internal/domain/subject"
	domainTelegram "placement_workflow/internal/domain/telegram"

	"github.com/google/uuid"
)

// AdminService handles registration of approvable subjects and the
// superadmin's Telegram chat administration.
type AdminService struct {
	subjectRepo     subject.Repository
	linkRepo        domainTelegram.LinkRepository
	adminTelegramID int64
	now             func() time.Time
}

func NewAdminService(sr subject.Repository, lr domainTelegram.LinkRepository, adminID int64) *AdminService {
	return &AdminService{
		subjectRepo:     sr,
		linkRepo:        lr,
		adminTelegramID: adminID,
		now:             time.Now,
	}
}

// Authorize checks that the Telegram user is the configured superadmin.
func (s *AdminService) Authorize(performingAdminID int64) error {
	if s.adminTelegramID == 0 || performingAdminID != s.adminTelegramID {
		return ErrAdminNotAuthorized
	}
	return nil
}

type registration struct {
	Kind     subject.Kind     `json:"kind" validate:"required,oneof=student admin institution"`
	OwnerID  string           `json:"ownerId" validate:"required,max=128"`
	Metadata subject.Metadata `json:"metadata"`
}

// RegisterSubject creates a pending subject. This is the entry point of the
// registration and application flows into the workflow.
func (s *AdminService) RegisterSubject(ctx context.Context, kind subject.Kind, ownerID string, md subject.Metadata) (*subject.Subject, error) {
	md.Name = strings.TrimSpace(md.Name)
	md.Email = strings.TrimSpace(md.Email)
	md.Institution = strings.TrimSpace(md.Institution)
	reg := registration{
		Kind:     kind,
		OwnerID:  strings.TrimSpace(ownerID),
		Metadata: md,
	}
	if err := ValidateStruct(reg); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	newSubject := &subject.Subject{
		ID:        uuid.New(),
		Kind:      reg.Kind,
		OwnerID:   reg.OwnerID,
		Status:    subject.StatusPending, // New subjects always wait for review
		Metadata:  reg.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.subjectRepo.Create(ctx, newSubject); err != nil {
		return nil, storageError("create subject", err)
	}
	return newSubject, nil
}

// LinkTelegramUser binds a platform user to a Telegram chat so their
// notifications are pushed there.
func (s *AdminService) LinkTelegramUser(ctx context.Context, performingAdminID int64, userID string, chatID int64) (*domainTelegram.Link, error) {
	if err := s.Authorize(performingAdminID); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" || chatID == 0 {
		return nil, invalidInput("user id and telegram id are required")
	}

	link := &domainTelegram.Link{
		UserID:   userID,
		ChatID:   chatID,
		LinkedAt: s.now().UTC(),
	}
	if err := s.linkRepo.Upsert(ctx, link); err != nil {
		return nil, storageError("link telegram user", err)
	}
	return link, nil
}
