package memory

import (
	"context"
	"database/sql"
	"slices"
	"sort"
	"strings"

	"placement_workflow/internal/domain/subject"

	"github.com/google/uuid"
)

type SubjectRepository struct {
	store *Store
}

func cloneSubject(s subject.Subject) *subject.Subject {
	s.Metadata.Documents = append([]string(nil), s.Metadata.Documents...)
	if s.Metadata.Extra != nil {
		extra := make(map[string]string, len(s.Metadata.Extra))
		for k, v := range s.Metadata.Extra {
			extra[k] = v
		}
		s.Metadata.Extra = extra
	}
	return &s
}

func (r *SubjectRepository) Create(ctx context.Context, s *subject.Subject) error {
	defer r.store.lock(ctx)()
	if err := r.store.fail(OpSubjectCreate); err != nil {
		return err
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.store.data.subjects[s.ID] = *cloneSubject(*s)
	r.store.data.subjectOrder = append(r.store.data.subjectOrder, s.ID)
	return nil
}

func (r *SubjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*subject.Subject, error) {
	if ctx.Value(txKey{}) != r.store && r.store.BeforeGetSubject != nil {
		r.store.BeforeGetSubject()
	}
	defer r.store.lock(ctx)()
	if err := r.store.fail(OpSubjectGet); err != nil {
		return nil, err
	}
	s, ok := r.store.data.subjects[id]
	if !ok {
		return nil, subject.ErrNotFound
	}
	return cloneSubject(s), nil
}

func (r *SubjectRepository) UpdateStatusIf(ctx context.Context, id uuid.UUID, upd subject.StatusUpdate) (*subject.Subject, error) {
	defer r.store.lock(ctx)()
	if err := r.store.fail(OpSubjectUpdate); err != nil {
		return nil, err
	}
	s, ok := r.store.data.subjects[id]
	if !ok {
		return nil, subject.ErrNotFound
	}
	if !slices.Contains(upd.Expected, s.Status) {
		return nil, subject.ErrStatusMismatch
	}
	s.Status = upd.To
	s.StatusReason = sql.NullString{String: upd.Reason, Valid: upd.Reason != ""}
	s.StatusChangedAt = sql.NullTime{Time: upd.At, Valid: true}
	s.StatusChangedBy = sql.NullString{String: upd.ActorID, Valid: true}
	s.UpdatedAt = upd.At
	r.store.data.subjects[id] = s
	return cloneSubject(s), nil
}

func matchesSearch(s subject.Subject, needle string) bool {
	if needle == "" {
		return true
	}
	needle = strings.ToLower(needle)
	for _, field := range []string{s.Metadata.Name, s.Metadata.Email, s.Metadata.Institution} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func sortKey(s subject.Subject, field subject.SortField) string {
	switch field {
	case subject.SortName:
		return strings.ToLower(s.Metadata.Name)
	case subject.SortEmail:
		return strings.ToLower(s.Metadata.Email)
	case subject.SortStatus:
		return string(s.Status)
	case subject.SortStatusChangedAt:
		if !s.StatusChangedAt.Valid {
			return ""
		}
		return s.StatusChangedAt.Time.UTC().Format("2006-01-02T15:04:05.000000000")
	default:
		return s.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000")
	}
}

func (r *SubjectRepository) List(ctx context.Context, f subject.ListFilter) ([]*subject.Subject, int, error) {
	defer r.store.lock(ctx)()
	if err := r.store.fail(OpSubjectList); err != nil {
		return nil, 0, err
	}

	var matched []subject.Subject
	for _, id := range r.store.data.subjectOrder {
		s := r.store.data.subjects[id]
		if f.Kind != "" && s.Kind != f.Kind {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if !matchesSearch(s, f.Search) {
			continue
		}
		matched = append(matched, s)
	}

	// Stable sort keeps insertion order between equal keys.
	if f.SortBy != "" || f.SortDesc {
		sort.SliceStable(matched, func(i, j int) bool {
			a, b := sortKey(matched[i], f.SortBy), sortKey(matched[j], f.SortBy)
			if f.SortDesc {
				return a > b
			}
			return a < b
		})
	}

	total := len(matched)
	start := min(f.Offset, total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	items := make([]*subject.Subject, 0, end-start)
	for _, s := range matched[start:end] {
		items = append(items, cloneSubject(s))
	}
	return items, total, nil
}
