package audit

import (
	"database/sql"
	"time"

	"placement_workflow/internal/domain/subject"

	"github.com/google/uuid"
)

// Transition is one recorded status change of a subject. Immutable once written.
type Transition struct {
	ID         uuid.UUID
	Sequence   int64 // assigned by storage, gives the commit order
	SubjectID  uuid.UUID
	FromStatus subject.Status
	ToStatus   subject.Status
	ActorID    string
	Reason     sql.NullString // required iff ToStatus is rejected
	OccurredAt time.Time
}
