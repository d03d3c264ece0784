package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"placement_workflow/internal/app"
	"placement_workflow/internal/domain/subject"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type SubjectHandlers struct {
	machine *app.StatusMachine
	query   *app.SubjectQueryService
	audit   *app.AuditTrail
	admin   *app.AdminService
	logger  *logrus.Entry
}

func NewSubjectHandlers(
	machine *app.StatusMachine,
	query *app.SubjectQueryService,
	auditTrail *app.AuditTrail,
	admin *app.AdminService,
	logger *logrus.Entry,
) *SubjectHandlers {
	return &SubjectHandlers{
		machine: machine,
		query:   query,
		audit:   auditTrail,
		admin:   admin,
		logger:  logger,
	}
}

// decodeBody decodes an optional JSON body; an empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return app.ErrInvalidInput
	}
	return nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, app.ErrInvalidInput
	}
	return v, nil
}

func subjectIDParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		// A malformed id names no subject.
		return uuid.Nil, app.ErrSubjectNotFound
	}
	return id, nil
}

// Metadata is checked by the service once trimmed.
type registerRequest struct {
	Kind     subject.Kind     `json:"kind" validate:"required"`
	OwnerID  string           `json:"ownerId" validate:"omitempty,max=128"`
	Metadata subject.Metadata `json:"metadata" validate:"-"`
}

// Register creates a pending subject. Reviewers may register on behalf of
// another user; everyone else owns what they register.
func (h *SubjectHandlers) Register(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := app.ValidateStruct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	owner := actor.ID
	if req.OwnerID != "" && actor.IsReviewer() {
		owner = req.OwnerID
	}

	s, err := h.admin.RegisterSubject(r.Context(), req.Kind, owner, req.Metadata)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: "Subject registered", Data: toSubjectView(s)})
}

func (h *SubjectHandlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intParam(r, "page")
	if err != nil {
		writeFail(w, http.StatusBadRequest, "page must be a number")
		return
	}
	pageSize, err := intParam(r, "pageSize")
	if err != nil {
		writeFail(w, http.StatusBadRequest, "pageSize must be a number")
		return
	}

	result, err := h.query.ListSubjects(r.Context(), subject.Kind(strings.ToLower(q.Get("kind"))), app.SubjectFilter{
		Status:    q.Get("status"),
		Search:    q.Get("search"),
		SortBy:    q.Get("sort"),
		SortOrder: q.Get("order"),
	}, page, pageSize)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writePage(w, toSubjectViews(result.Items),
		buildMeta(result.TotalCount, result.Page, result.PageSize, result.HasNext, result.HasPrev))
}

// visible loads the subject if the caller may see it: reviewers see every
// subject, other users only their own.
func (h *SubjectHandlers) visible(r *http.Request, id uuid.UUID) (*subject.Subject, error) {
	s, err := h.query.GetSubject(r.Context(), id)
	if err != nil {
		return nil, err
	}
	actor, _ := ActorFrom(r.Context())
	if !actor.IsReviewer() && s.OwnerID != actor.ID {
		return nil, app.ErrSubjectNotFound
	}
	return s, nil
}

func (h *SubjectHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, err := subjectIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	s, err := h.visible(r, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, "", toSubjectView(s))
}

func (h *SubjectHandlers) History(w http.ResponseWriter, r *http.Request) {
	id, err := subjectIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if _, err := h.visible(r, id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	history, err := h.audit.History(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	views := make([]transitionView, 0, len(history))
	for _, t := range history {
		views = append(views, toTransitionView(t))
	}
	writeOK(w, "", views)
}

type transitionRequest struct {
	Reason string `json:"reason"`
}

// Transition returns a handler moving the subject named by param to status.
// A non-empty kind restricts the route to subjects of that kind. Admin
// requests are decided by a superadmin whichever route is used.
func (h *SubjectHandlers) Transition(param string, kind subject.Kind, to subject.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := subjectIDParam(r, param)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		var req transitionRequest
		if err := decodeBody(r, &req); err != nil {
			writeFail(w, http.StatusBadRequest, "invalid body")
			return
		}

		s, err := h.query.GetSubject(r.Context(), id)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		if kind != "" && s.Kind != kind {
			writeError(w, h.logger, app.ErrSubjectNotFound)
			return
		}
		actor, _ := ActorFrom(r.Context())
		if s.Kind == subject.KindAdmin && actor.Role != RoleSuperadmin {
			writeFail(w, http.StatusForbidden, "forbidden")
			return
		}

		t, err := h.machine.RequestTransition(r.Context(), id, to, actor.ID, req.Reason)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeOK(w, "Subject "+string(t.ToStatus), toTransitionView(t))
	}
}
