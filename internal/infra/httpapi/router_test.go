package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"placement_workflow/internal/app"
	"placement_workflow/internal/domain/subject"
	"placement_workflow/internal/infra/memory"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiEnv struct {
	store  *memory.Store
	auth   *Authenticator
	admin  *app.AdminService
	server *httptest.Server
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	l := logrus.New()
	l.SetOutput(io.Discard)
	logger := logrus.NewEntry(l)
	store := memory.NewStore()

	notifs := app.NewNotificationService(store.Notifications(), store.Links(), nil, logger)
	fanout := app.NewNotificationFanout(store.Notifications(), notifs, app.DefaultNotificationTTL, logger)
	auditTrail := app.NewAuditTrail(store.Transitions(), store.Subjects())
	machine := app.NewStatusMachine(store.Subjects(), auditTrail, fanout, store, logger)
	query := app.NewSubjectQueryService(store.Subjects())
	admin := app.NewAdminService(store.Subjects(), store.Links(), 0)
	auth := NewAuthenticator("test-secret")

	router := NewRouter(auth,
		NewSubjectHandlers(machine, query, auditTrail, admin, logger),
		NewNotificationHandlers(notifs, logger),
		logger)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &apiEnv{store: store, auth: auth, admin: admin, server: server}
}

func (e *apiEnv) token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := e.auth.IssueToken(userID, role, time.Hour)
	require.NoError(t, err)
	return tok
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    *Meta           `json:"meta"`
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body any) (int, apiResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (e *apiEnv) register(t *testing.T, kind subject.Kind, owner, name string) *subject.Subject {
	t.Helper()
	s, err := e.admin.RegisterSubject(context.Background(), kind, owner, subject.Metadata{
		Name:  name,
		Email: owner + "@campus.edu",
	})
	require.NoError(t, err)
	return s
}

func TestHealthz(t *testing.T) {
	e := newAPIEnv(t)
	status, body := e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.Success)
}

func TestAuth(t *testing.T) {
	e := newAPIEnv(t)

	status, body := e.do(t, http.MethodGet, "/notifications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, body.Success)

	status, _ = e.do(t, http.MethodGet, "/notifications", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	other := NewAuthenticator("another-secret")
	forged, err := other.IssueToken("u1", RoleSuperadmin, time.Hour)
	require.NoError(t, err)
	status, _ = e.do(t, http.MethodGet, "/notifications", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	e.auth.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired := e.token(t, "u1", RoleStudent)
	e.auth.now = time.Now
	status, _ = e.do(t, http.MethodGet, "/notifications", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestApproveRejectFlow(t *testing.T) {
	e := newAPIEnv(t)
	s := e.register(t, subject.KindStudent, "stu-1", "Kavya Nair")
	tpo := e.token(t, "tpo-1", RoleTPO)
	student := e.token(t, "stu-1", RoleStudent)

	status, _ := e.do(t, http.MethodPut, "/subjects/"+s.ID.String()+"/approve", student, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := e.do(t, http.MethodPut, "/subjects/"+s.ID.String()+"/reject", tpo, map[string]string{"reason": "  "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, body.Success)

	status, body = e.do(t, http.MethodPut, "/subjects/"+s.ID.String()+"/reject", tpo, map[string]string{"reason": "Missing marksheet"})
	require.Equal(t, http.StatusOK, status)
	var rejected transitionView
	require.NoError(t, json.Unmarshal(body.Data, &rejected))
	assert.Equal(t, subject.StatusPending, rejected.FromStatus)
	assert.Equal(t, subject.StatusRejected, rejected.ToStatus)
	assert.Equal(t, "Missing marksheet", rejected.Reason)
	assert.Equal(t, "tpo-1", rejected.ActorID)

	status, body = e.do(t, http.MethodPut, "/subjects/"+s.ID.String()+"/approve", tpo, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Subject approved", body.Message)

	// approved -> rejected is not a legal move.
	status, _ = e.do(t, http.MethodPut, "/subjects/"+s.ID.String()+"/reject", tpo, map[string]string{"reason": "late"})
	assert.Equal(t, http.StatusConflict, status)

	status, body = e.do(t, http.MethodGet, "/subjects/"+s.ID.String()+"/history", student, nil)
	require.Equal(t, http.StatusOK, status)
	var history []transitionView
	require.NoError(t, json.Unmarshal(body.Data, &history))
	require.Len(t, history, 2)
	assert.Equal(t, subject.StatusRejected, history[0].ToStatus)
	assert.Equal(t, subject.StatusApproved, history[1].ToStatus)
	assert.Less(t, history[0].Sequence, history[1].Sequence)

	status, _ = e.do(t, http.MethodPut, "/subjects/"+uuid.NewString()+"/approve", tpo, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = e.do(t, http.MethodPut, "/subjects/nope/approve", tpo, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestKindScopedRoutes(t *testing.T) {
	e := newAPIEnv(t)
	student := e.register(t, subject.KindStudent, "stu-1", "Kavya Nair")
	adminReq := e.register(t, subject.KindAdmin, "adm-1", "Placement Cell")
	tpo := e.token(t, "tpo-1", RoleTPO)
	superadmin := e.token(t, "root", RoleSuperadmin)

	status, _ := e.do(t, http.MethodPut, "/admin-requests/"+adminReq.ID.String()+"/approve", tpo, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = e.do(t, http.MethodPut, "/admin-requests/"+student.ID.String()+"/approve", superadmin, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// The generic routes do not open admin requests to a tpo.
	status, _ = e.do(t, http.MethodPut, "/subjects/"+adminReq.ID.String()+"/approve", tpo, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = e.do(t, http.MethodPut, "/subjects/"+adminReq.ID.String()+"/reject", tpo, map[string]string{"reason": "x"})
	assert.Equal(t, http.StatusForbidden, status)
	stored, err := e.store.Subjects().GetByID(context.Background(), adminReq.ID)
	require.NoError(t, err)
	assert.Equal(t, subject.StatusPending, stored.Status)

	status, _ = e.do(t, http.MethodPut, "/admin-requests/"+adminReq.ID.String()+"/approve", superadmin, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = e.do(t, http.MethodPut, "/subjects/"+adminReq.ID.String()+"/approve", superadmin, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = e.do(t, http.MethodPut, "/profile/"+adminReq.ID.String()+"/reject", tpo, map[string]string{"reason": "x"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = e.do(t, http.MethodPut, "/profile/"+student.ID.String()+"/reject", tpo, map[string]string{"reason": "Photo missing"})
	assert.Equal(t, http.StatusOK, status)
}

func TestListSubjects(t *testing.T) {
	e := newAPIEnv(t)
	for i, name := range []string{"Ananya", "Bhavesh", "Chitra", "Deepak", "Esha"} {
		e.register(t, subject.KindStudent, "stu-"+string(rune('a'+i)), name)
	}
	e.register(t, subject.KindInstitution, "inst-1", "NIT Trichy")
	tpo := e.token(t, "tpo-1", RoleTPO)

	status, body := e.do(t, http.MethodGet, "/subjects?kind=student&status=pending&page=2&pageSize=2&sort=name&order=desc", tpo, nil)
	require.Equal(t, http.StatusOK, status)
	var items []subjectView
	require.NoError(t, json.Unmarshal(body.Data, &items))
	require.Len(t, items, 2)
	assert.Equal(t, "Chitra", items[0].Metadata.Name)
	assert.Equal(t, "Bhavesh", items[1].Metadata.Name)
	require.NotNil(t, body.Meta)
	assert.Equal(t, 5, body.Meta.Total)
	assert.Equal(t, 3, body.Meta.TotalPages)
	assert.True(t, body.Meta.HasNext)
	assert.True(t, body.Meta.HasPrev)

	status, body = e.do(t, http.MethodGet, "/subjects?search=nit", tpo, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, body.Meta.Total)

	status, _ = e.do(t, http.MethodGet, "/subjects?status=archived", tpo, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = e.do(t, http.MethodGet, "/subjects?page=two", tpo, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = e.do(t, http.MethodGet, "/subjects", e.token(t, "stu-a", RoleStudent), nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestGetSubjectVisibility(t *testing.T) {
	e := newAPIEnv(t)
	s := e.register(t, subject.KindStudent, "stu-1", "Kavya Nair")

	status, _ := e.do(t, http.MethodGet, "/subjects/"+s.ID.String(), e.token(t, "stu-1", RoleStudent), nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = e.do(t, http.MethodGet, "/subjects/"+s.ID.String(), e.token(t, "stu-2", RoleStudent), nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = e.do(t, http.MethodGet, "/subjects/"+s.ID.String(), e.token(t, "tpo-1", RoleTPO), nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestRegisterSubject(t *testing.T) {
	e := newAPIEnv(t)
	student := e.token(t, "stu-1", RoleStudent)

	status, body := e.do(t, http.MethodPost, "/subjects", student, map[string]any{
		"kind":     "student",
		"ownerId":  "someone-else",
		"metadata": map[string]any{"name": "Kavya Nair", "email": "kavya@campus.edu"},
	})
	require.Equal(t, http.StatusCreated, status)
	var created subjectView
	require.NoError(t, json.Unmarshal(body.Data, &created))
	assert.Equal(t, "stu-1", created.OwnerID)
	assert.Equal(t, subject.StatusPending, created.Status)

	status, body = e.do(t, http.MethodPost, "/subjects", e.token(t, "tpo-1", RoleTPO), map[string]any{
		"kind":     "institution",
		"ownerId":  "inst-7",
		"metadata": map[string]any{"name": "IIIT Pune", "email": "tpo@iiitp.ac.in"},
	})
	require.Equal(t, http.StatusCreated, status)
	require.NoError(t, json.Unmarshal(body.Data, &created))
	assert.Equal(t, "inst-7", created.OwnerID)

	status, _ = e.do(t, http.MethodPost, "/subjects", student, map[string]any{"kind": "company"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = e.do(t, http.MethodPost, "/subjects", student, map[string]any{
		"metadata": map[string]any{"name": "Kavya Nair", "email": "kavya@campus.edu"},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body.Message, "registerRequest.kind: required")

	status, body = e.do(t, http.MethodPost, "/subjects", student, map[string]any{
		"kind":     "student",
		"metadata": map[string]any{"name": "Kavya Nair", "email": "kavya at campus"},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body.Message, "metadata.email: email")
}

func TestNotificationsEndpoints(t *testing.T) {
	e := newAPIEnv(t)
	first := e.register(t, subject.KindStudent, "stu-1", "Kavya Nair")
	second := e.register(t, subject.KindInstitution, "stu-1", "Kavya's College")
	tpo := e.token(t, "tpo-1", RoleTPO)
	student := e.token(t, "stu-1", RoleStudent)

	status, _ := e.do(t, http.MethodPut, "/subjects/"+first.ID.String()+"/approve", tpo, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = e.do(t, http.MethodPut, "/subjects/"+second.ID.String()+"/reject", tpo, map[string]string{"reason": "Unaccredited"})
	require.Equal(t, http.StatusOK, status)

	status, body := e.do(t, http.MethodGet, "/notifications", student, nil)
	require.Equal(t, http.StatusOK, status)
	var list notificationListData
	require.NoError(t, json.Unmarshal(body.Data, &list))
	require.Len(t, list.Items, 2)
	assert.Equal(t, 2, list.UnreadCount)
	assert.Equal(t, 2, body.Meta.Total)

	status, body = e.do(t, http.MethodGet, "/notifications", tpo, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body.Data, &list))
	assert.Empty(t, list.Items)

	status, _ = e.do(t, http.MethodPut, "/notifications/mark-read", student, map[string]any{"ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = e.do(t, http.MethodPut, "/notifications/mark-read", student, map[string]any{"ids": []string{"bogus"}})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = e.do(t, http.MethodPut, "/notifications/mark-read", student, map[string]any{"all": true})
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"updated":2}`, string(body.Data))

	status, body = e.do(t, http.MethodGet, "/notifications/unread-count", student, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"unreadCount":0}`, string(body.Data))

	status, _ = e.do(t, http.MethodGet, "/notifications?unreadOnly=maybe", student, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStorageUnavailable(t *testing.T) {
	e := newAPIEnv(t)
	e.store.FailOn(memory.OpSubjectList, errors.New("connection refused"))

	status, body := e.do(t, http.MethodGet, "/subjects", e.token(t, "tpo-1", RoleTPO), nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.NotContains(t, body.Message, "connection refused")
}
