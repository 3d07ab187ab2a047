package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citydirectory/directory-backend/pkg/enums"
	"github.com/citydirectory/directory-backend/pkg/types"
)

// PendingEdit holds an owner's proposed changes to an approved business until
// an admin merges or rejects them. business_id is unique.
type PendingEdit struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BusinessID      uuid.UUID               `gorm:"column:business_id;type:uuid;not null;uniqueIndex"`
	SubmittedBy     uuid.UUID               `gorm:"column:submitted_by;type:uuid;not null"`
	Changes         types.ListingFields     `gorm:"column:changes;type:jsonb;not null"`
	Status          enums.PendingEditStatus `gorm:"column:status;type:pending_edit_status;not null;default:'PENDING'"`
	RejectionReason *string                 `gorm:"column:rejection_reason"`
	ReviewedAt      *time.Time              `gorm:"column:reviewed_at"`
	ReviewedBy      *uuid.UUID              `gorm:"column:reviewed_by;type:uuid"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (PendingEdit) TableName() string { return "pending_edits" }

func (p *PendingEdit) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
