package database

import (
	"testing"

	"placement_workflow/internal/domain/subject"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want subject.Status
	}{
		{raw: "pending", want: subject.StatusPending},
		{raw: "Pending", want: subject.StatusPending},
		{raw: "inactive", want: subject.StatusPending},
		{raw: "In Review", want: subject.StatusPending},
		{raw: "under-review", want: subject.StatusPending},
		{raw: "Approved", want: subject.StatusApproved},
		{raw: " verified ", want: subject.StatusApproved},
		{raw: "ACTIVE", want: subject.StatusApproved},
		{raw: "Rejected", want: subject.StatusRejected},
		{raw: "declined", want: subject.StatusRejected},
	}
	for _, tc := range tests {
		got, err := normalizeStatus(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}

	_, err := normalizeStatus("archived")
	assert.Error(t, err)
	_, err = normalizeStatus("")
	assert.Error(t, err)
}

func TestStoredSpellings(t *testing.T) {
	assert.Equal(t, []string{"active", "approved", "verified"}, storedSpellings(subject.StatusApproved))
	assert.Equal(t, []string{"declined", "rejected"}, storedSpellings(subject.StatusRejected))
	assert.Equal(t,
		[]string{"declined", "in_review", "inactive", "pending", "rejected", "submitted", "under_review"},
		storedSpellings(subject.StatusPending, subject.StatusRejected))
	assert.Empty(t, storedSpellings())
}

func TestCanonicalStatusSQL(t *testing.T) {
	assert.Equal(t, "CASE"+
		" WHEN "+normalizedStatusSQL+" IN ('in_review', 'inactive', 'pending', 'submitted', 'under_review') THEN 'pending'"+
		" WHEN "+normalizedStatusSQL+" IN ('active', 'approved', 'verified') THEN 'approved'"+
		" WHEN "+normalizedStatusSQL+" IN ('declined', 'rejected') THEN 'rejected'"+
		" END", canonicalStatusSQL)
}

func TestBuildListQuery_SortByStatusUsesCanonicalStatus(t *testing.T) {
	pageQuery, _, _, _, err := buildListQuery(subject.ListFilter{SortBy: subject.SortStatus, SortDesc: true})
	require.NoError(t, err)
	assert.Equal(t, "SELECT "+subjectColumns+" FROM subjects ORDER BY "+canonicalStatusSQL+
		" DESC NULLS LAST, created_at ASC, id ASC", pageQuery)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `first\_name`, escapeLike("first_name"))
	assert.Equal(t, `a\\b`, escapeLike(`a\b`))
	assert.Equal(t, "plain", escapeLike("plain"))
}

func TestBuildListQuery_NoFilters(t *testing.T) {
	pageQuery, countQuery, args, countArgs, err := buildListQuery(subject.ListFilter{})
	require.NoError(t, err)

	assert.Equal(t, "SELECT COUNT(*) FROM subjects", countQuery)
	assert.Equal(t, "SELECT "+subjectColumns+" FROM subjects ORDER BY created_at ASC NULLS LAST, created_at ASC, id ASC", pageQuery)
	assert.Empty(t, args)
	assert.Zero(t, countArgs)
}

func TestBuildListQuery_AllFilters(t *testing.T) {
	pageQuery, countQuery, args, countArgs, err := buildListQuery(subject.ListFilter{
		Kind:     subject.KindStudent,
		Status:   subject.StatusRejected,
		Search:   " 50%_off ",
		SortBy:   subject.SortName,
		SortDesc: true,
		Offset:   20,
		Limit:    10,
	})
	require.NoError(t, err)

	where := " WHERE kind = $1 AND " + normalizedStatusSQL + " = ANY($2) AND " +
		"(metadata->>'name' ILIKE $3 OR metadata->>'email' ILIKE $3 OR metadata->>'institution' ILIKE $3)"
	assert.Equal(t, "SELECT COUNT(*) FROM subjects"+where, countQuery)
	assert.Equal(t, "SELECT "+subjectColumns+" FROM subjects"+where+
		" ORDER BY LOWER(metadata->>'name') DESC NULLS LAST, created_at ASC, id ASC LIMIT $4 OFFSET $5", pageQuery)

	require.Len(t, args, 5)
	assert.Equal(t, 3, countArgs)
	assert.Equal(t, subject.KindStudent, args[0])
	assert.Equal(t, pq.Array([]string{"declined", "rejected"}), args[1])
	assert.Equal(t, `%50\%\_off%`, args[2])
	assert.Equal(t, 10, args[3])
	assert.Equal(t, 20, args[4])
}

func TestBuildListQuery_UnknownSortField(t *testing.T) {
	_, _, _, _, err := buildListQuery(subject.ListFilter{SortBy: "password"})
	assert.Error(t, err)
}
