package database

import (
	"fmt"
	"slices"
	"strings"

	"placement_workflow/internal/domain/subject"
)

// legacyStatuses maps every spelling found in older records to the closed
// status set.
var legacyStatuses = map[string]subject.Status{
	"pending":      subject.StatusPending,
	"inactive":     subject.StatusPending,
	"submitted":    subject.StatusPending,
	"in_review":    subject.StatusPending,
	"under_review": subject.StatusPending,
	"approved":     subject.StatusApproved,
	"verified":     subject.StatusApproved,
	"active":       subject.StatusApproved,
	"rejected":     subject.StatusRejected,
	"declined":     subject.StatusRejected,
}

func normalizeStatus(raw string) (subject.Status, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	status, ok := legacyStatuses[key]
	if !ok {
		return "", fmt.Errorf("unknown subject status %q", raw)
	}
	return status, nil
}

// storedSpellings returns every stored value that normalizes to one of the
// given statuses, so filters and conditional updates match legacy rows.
func storedSpellings(statuses ...subject.Status) []string {
	var out []string
	for raw, status := range legacyStatuses {
		for _, want := range statuses {
			if status == want {
				out = append(out, raw)
			}
		}
	}
	slices.Sort(out)
	return out
}

// canonicalStatusSQL evaluates to the canonical status of a stored value, so
// ordering by status groups legacy spellings with their canonical status.
var canonicalStatusSQL = buildCanonicalStatusSQL()

func buildCanonicalStatusSQL() string {
	var b strings.Builder
	b.WriteString("CASE")
	for _, status := range []subject.Status{subject.StatusPending, subject.StatusApproved, subject.StatusRejected} {
		spellings := storedSpellings(status)
		quoted := make([]string, len(spellings))
		for i, raw := range spellings {
			quoted[i] = "'" + raw + "'"
		}
		fmt.Fprintf(&b, " WHEN %s IN (%s) THEN '%s'", normalizedStatusSQL, strings.Join(quoted, ", "), status)
	}
	b.WriteString(" END")
	return b.String()
}
