package models

import (
	"time"

	"github.com/google/uuid"
)

type TargetStatus string

const (
	TargetStatusActive   TargetStatus = "active"
	TargetStatusInactive TargetStatus = "inactive"
	TargetStatusPending  TargetStatus = "pending"
	TargetStatusArchived TargetStatus = "archived"
)

func (s TargetStatus) Valid() bool {
	switch s {
	case TargetStatusActive, TargetStatusInactive, TargetStatusPending, TargetStatusArchived:
		return true
	}
	return false
}

type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnknown Gender = "unknown"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderUnknown:
		return true
	}
	return false
}

// Target is a watchlist person record. A target that has photos must keep
// at least one: deleting the sole remaining photo is rejected.
type Target struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	CaseID    uuid.UUID    `json:"case_id" db:"case_id"`
	Name      string       `json:"name" db:"name"`
	Gender    Gender       `json:"gender" db:"gender"`
	Status    TargetStatus `json:"status" db:"status"`
	Notes     string       `json:"notes" db:"notes"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// TargetPhoto references an image stored in the object store. Its
// embedding lives in the vector index keyed by (target_id, photo_id).
type TargetPhoto struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	TargetID    uuid.UUID  `json:"target_id" db:"target_id"`
	ObjectKey   string     `json:"object_key" db:"object_key"`
	ContentType string     `json:"content_type" db:"content_type"`
	TakenAt     *time.Time `json:"taken_at,omitempty" db:"taken_at"`
	UploadedAt  time.Time  `json:"uploaded_at" db:"uploaded_at"`
}
