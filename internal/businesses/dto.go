package businesses

import (
	"time"

	"github.com/google/uuid"

	"github.com/citydirectory/directory-backend/pkg/db/models"
	"github.com/citydirectory/directory-backend/pkg/enums"
	"github.com/citydirectory/directory-backend/pkg/types"
)

// ManagedBusinessDTO is the owner dashboard and moderation view of a listing,
// including the fields public surfaces never show.
type ManagedBusinessDTO struct {
	ID     uuid.UUID           `json:"id"`
	Fields types.ListingFields `json:"fields"`

	IsVisible   bool `json:"is_visible"`
	IsVerified  bool `json:"is_verified"`
	IsPinned    bool `json:"is_pinned"`
	PinnedOrder *int `json:"pinned_order,omitempty"`
	IsTest      bool `json:"is_test"`

	Status          enums.BusinessStatus `json:"status"`
	RejectionReason *string              `json:"rejection_reason,omitempty"`
	ReviewedAt      *time.Time           `json:"reviewed_at,omitempty"`
	OwnerID         *uuid.UUID           `json:"owner_id,omitempty"`
	PendingEdit     *PendingEditDTO      `json:"pending_edit,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PendingEditDTO exposes an owner's proposed changes and their review state.
type PendingEditDTO struct {
	ID              uuid.UUID               `json:"id"`
	BusinessID      uuid.UUID               `json:"business_id"`
	SubmittedBy     uuid.UUID               `json:"submitted_by"`
	Changes         types.ListingFields     `json:"changes"`
	Status          enums.PendingEditStatus `json:"status"`
	RejectionReason *string                 `json:"rejection_reason,omitempty"`
	ReviewedAt      *time.Time              `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// QueueResult is one page of the moderation queue.
type QueueResult struct {
	Businesses []ManagedBusinessDTO `json:"businesses"`
	Edits      []PendingEditDTO     `json:"edits"`
	Cursor     string               `json:"cursor"`
}

func toManagedDTO(b models.Business, edit *models.PendingEdit) ManagedBusinessDTO {
	out := ManagedBusinessDTO{
		ID:              b.ID,
		Fields:          b.Fields(),
		IsVisible:       b.IsVisible,
		IsVerified:      b.IsVerified,
		IsPinned:        b.IsPinned,
		PinnedOrder:     b.PinnedOrder,
		IsTest:          b.IsTest,
		Status:          b.Status,
		RejectionReason: b.RejectionReason,
		ReviewedAt:      b.ReviewedAt,
		OwnerID:         b.OwnerID,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
	if edit != nil {
		dto := toPendingEditDTO(*edit)
		out.PendingEdit = &dto
	}
	return out
}

func toPendingEditDTO(e models.PendingEdit) PendingEditDTO {
	return PendingEditDTO{
		ID:              e.ID,
		BusinessID:      e.BusinessID,
		SubmittedBy:     e.SubmittedBy,
		Changes:         e.Changes,
		Status:          e.Status,
		RejectionReason: e.RejectionReason,
		ReviewedAt:      e.ReviewedAt,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}
