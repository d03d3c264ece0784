package app

import (
	"context"
	"errors"
	"strings"

	"placement_workflow/internal/domain/subject"

	"github.com/google/uuid"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// SubjectFilter is the list-UI filter. Status accepts a status name or
// "All"; SortOrder is "asc" or "desc".
type SubjectFilter struct {
	Status    string
	Search    string
	SortBy    string
	SortOrder string
}

// SubjectPage is one page of a filtered subject list.
type SubjectPage struct {
	Items      []*subject.Subject
	TotalCount int
	Page       int
	PageSize   int
	HasNext    bool
	HasPrev    bool
}

var sortFields = map[string]subject.SortField{
	"":                  "",
	"createdat":         subject.SortCreatedAt,
	"created_at":        subject.SortCreatedAt,
	"name":              subject.SortName,
	"email":             subject.SortEmail,
	"status":            subject.SortStatus,
	"statuschangedat":   subject.SortStatusChangedAt,
	"status_changed_at": subject.SortStatusChangedAt,
}

// SubjectQueryService is the read-only side of the workflow. It never
// mutates subjects or transitions.
type SubjectQueryService struct {
	subjects subject.Repository
}

func NewSubjectQueryService(subjects subject.Repository) *SubjectQueryService {
	return &SubjectQueryService{subjects: subjects}
}

// ListSubjects returns a page of subjects of the given kind (all kinds when
// kind is empty). page is 1-indexed.
func (q *SubjectQueryService) ListSubjects(ctx context.Context, kind subject.Kind, filter SubjectFilter, page, pageSize int) (*SubjectPage, error) {
	if kind != "" && !kind.Valid() {
		return nil, invalidInput("unknown kind %q", kind)
	}

	f := subject.ListFilter{
		Kind:   kind,
		Search: strings.TrimSpace(filter.Search),
	}

	status := strings.ToLower(strings.TrimSpace(filter.Status))
	if status != "" && status != "all" {
		f.Status = subject.Status(status)
		if !f.Status.Valid() {
			return nil, invalidInput("unknown status %q", filter.Status)
		}
	}

	sortBy, ok := sortFields[strings.ToLower(strings.TrimSpace(filter.SortBy))]
	if !ok {
		return nil, invalidInput("cannot sort by %q", filter.SortBy)
	}
	f.SortBy = sortBy
	switch strings.ToLower(strings.TrimSpace(filter.SortOrder)) {
	case "", "asc":
	case "desc":
		f.SortDesc = true
	default:
		return nil, invalidInput("sort order must be asc or desc")
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	f.Offset = (page - 1) * pageSize
	f.Limit = pageSize

	items, total, err := q.subjects.List(ctx, f)
	if err != nil {
		return nil, storageError("list subjects", err)
	}
	return &SubjectPage{
		Items:      items,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		HasPrev:    page > 1,
		HasNext:    page*pageSize < total,
	}, nil
}

// GetSubject returns a single subject.
func (q *SubjectQueryService) GetSubject(ctx context.Context, id uuid.UUID) (*subject.Subject, error) {
	s, err := q.subjects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, subject.ErrNotFound) {
			return nil, ErrSubjectNotFound
		}
		return nil, storageError("get subject", err)
	}
	return s, nil
}
