package subject

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates which approvable entity a Subject represents.
type Kind string

const (
	KindStudent     Kind = "student"
	KindAdmin       Kind = "admin"
	KindInstitution Kind = "institution"
)

func (k Kind) Valid() bool {
	switch k {
	case KindStudent, KindAdmin, KindInstitution:
		return true
	default:
		return false
	}
}

// Metadata is the kind-specific payload of a subject. The workflow engine
// only reads Name, Email and Institution for searching; the rest is passed through.
type Metadata struct {
	Name        string            `json:"name" validate:"required,max=200"`
	Email       string            `json:"email" validate:"required,email,max=254"`
	Institution string            `json:"institution,omitempty" validate:"omitempty,max=200"`
	Documents   []string          `json:"documents,omitempty" validate:"omitempty,dive,required"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Subject is any entity that passes through the approval workflow
// (student profile, admin registration request, institution record).
type Subject struct {
	ID              uuid.UUID
	Kind            Kind
	OwnerID         string // user that receives notifications about this subject
	Status          Status
	StatusReason    sql.NullString // set when Status is rejected
	StatusChangedAt sql.NullTime
	StatusChangedBy sql.NullString
	Metadata        Metadata
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
