package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"placement_workflow/internal/domain/subject"
	"placement_workflow/internal/infra/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStudents(t *testing.T, e *testEnv, n int) []*subject.Subject {
	t.Helper()
	var out []*subject.Subject
	for i := range n {
		out = append(out, e.register(t, subject.KindStudent,
			fmt.Sprintf("user-%02d", i),
			fmt.Sprintf("Student %02d", i),
			fmt.Sprintf("student%02d@campus.edu", i),
			"Pune University"))
	}
	return out
}

func TestListSubjects_FilterByStatus(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	students := seedStudents(t, e, 15)
	e.register(t, subject.KindAdmin, "admin-1", "Admin", "admin@campus.edu", "")

	for _, s := range students[:4] {
		_, err := e.machine.RequestTransition(ctx, s.ID, subject.StatusApproved, "tpo-1", "")
		require.NoError(t, err)
	}
	_, err := e.machine.RequestTransition(ctx, students[4].ID, subject.StatusRejected, "tpo-1", "blurry scan")
	require.NoError(t, err)

	page, err := e.query.ListSubjects(ctx, subject.KindStudent, SubjectFilter{Status: "pending"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, page.TotalCount)
	assert.Len(t, page.Items, 10)
	assert.False(t, page.HasNext)
	assert.False(t, page.HasPrev)
	for _, s := range page.Items {
		assert.Equal(t, subject.StatusPending, s.Status)
		assert.Equal(t, subject.KindStudent, s.Kind)
	}

	page, err = e.query.ListSubjects(ctx, subject.KindStudent, SubjectFilter{Status: "Approved"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, page.TotalCount)

	page, err = e.query.ListSubjects(ctx, subject.KindStudent, SubjectFilter{Status: "All"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 15, page.TotalCount)
	assert.True(t, page.HasNext)

	page, err = e.query.ListSubjects(ctx, "", SubjectFilter{}, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 16, page.TotalCount)
}

func TestListSubjects_Pagination(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	students := seedStudents(t, e, 25)

	page, err := e.query.ListSubjects(ctx, subject.KindStudent, SubjectFilter{}, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 25, page.TotalCount)
	require.Len(t, page.Items, 10)
	assert.Equal(t, students[10].ID, page.Items[0].ID)
	assert.True(t, page.HasNext)
	assert.True(t, page.HasPrev)

	page, err = e.query.ListSubjects(ctx, subject.KindStudent, SubjectFilter{}, 3, 10)
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)
	assert.False(t, page.HasNext)
	assert.True(t, page.HasPrev)

	page, err = e.query.ListSubjects(ctx, subject.KindStudent, SubjectFilter{}, 9, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 25, page.TotalCount)

	page, err = e.query.ListSubjects(ctx, subject.KindStudent, SubjectFilter{}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, DefaultPageSize, page.PageSize)

	page, err = e.query.ListSubjects(ctx, subject.KindStudent, SubjectFilter{}, 1, 5000)
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, page.PageSize)
}

func TestListSubjects_Search(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.register(t, subject.KindStudent, "u1", "Priya Sharma", "priya@iitb.ac.in", "IIT Bombay")
	e.register(t, subject.KindStudent, "u2", "Arjun Mehta", "arjun@gmail.com", "VIT Vellore")
	e.register(t, subject.KindStudent, "u3", "Sneha Iyer", "sneha@vit.ac.in", "VIT Chennai")

	tests := []struct {
		search string
		want   int
	}{
		{search: "priya", want: 1},
		{search: "SHARMA", want: 1},
		{search: "vit", want: 2},
		{search: "GMAIL.COM", want: 1},
		{search: "bombay", want: 1},
		{search: "nobody", want: 0},
		{search: "  ", want: 3},
	}
	for _, tc := range tests {
		page, err := e.query.ListSubjects(ctx, subject.KindStudent, SubjectFilter{Search: tc.search}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, tc.want, page.TotalCount, "search %q", tc.search)
	}
}

func TestListSubjects_Sort(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.register(t, subject.KindStudent, "u1", "Charlie", "c@campus.edu", "")
	e.register(t, subject.KindStudent, "u2", "alice", "a@campus.edu", "")
	e.register(t, subject.KindStudent, "u3", "Bob", "b@campus.edu", "")

	page, err := e.query.ListSubjects(ctx, subject.KindStudent, SubjectFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Charlie", "alice", "Bob"}, names(page.Items))

	page, err = e.query.ListSubjects(ctx, subject.KindStudent, SubjectFilter{SortBy: "name"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "Bob", "Charlie"}, names(page.Items))

	page, err = e.query.ListSubjects(ctx, subject.KindStudent, SubjectFilter{SortBy: "email", SortOrder: "desc"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Charlie", "Bob", "alice"}, names(page.Items))
}

func names(items []*subject.Subject) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		out = append(out, s.Metadata.Name)
	}
	return out
}

func TestListSubjects_InvalidInput(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.query.ListSubjects(ctx, subject.Kind("company"), SubjectFilter{}, 1, 10)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.query.ListSubjects(ctx, subject.KindStudent, SubjectFilter{Status: "verified"}, 1, 10)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.query.ListSubjects(ctx, subject.KindStudent, SubjectFilter{SortBy: "password"}, 1, 10)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.query.ListSubjects(ctx, subject.KindStudent, SubjectFilter{SortOrder: "sideways"}, 1, 10)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestListSubjects_StorageFailure(t *testing.T) {
	e := newTestEnv(t)
	e.store.FailOn(memory.OpSubjectList, errors.New("timeout"))
	_, err := e.query.ListSubjects(context.Background(), subject.KindStudent, SubjectFilter{}, 1, 10)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}
