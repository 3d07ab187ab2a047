package outbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/citydirectory/directory-backend/pkg/enums"
)

// BusinessStatusChangedEvent is emitted for submissions and every admin
// decision on a business.
type BusinessStatusChangedEvent struct {
	BusinessID      uuid.UUID             `json:"businessId"`
	OwnerID         *uuid.UUID            `json:"ownerId,omitempty"`
	PreviousStatus  *enums.BusinessStatus `json:"previousStatus,omitempty"`
	Status          enums.BusinessStatus  `json:"status"`
	IsVisible       bool                  `json:"isVisible"`
	RejectionReason *string               `json:"rejectionReason,omitempty"`
	ChangedAt       time.Time             `json:"changedAt"`
}

// PendingEditEvent covers submission, review and dismissal of an edit.
// Merged is true when an approval copied the changes onto the business.
type PendingEditEvent struct {
	PendingEditID   uuid.UUID                `json:"pendingEditId"`
	BusinessID      uuid.UUID                `json:"businessId"`
	SubmittedBy     uuid.UUID                `json:"submittedBy"`
	Status          *enums.PendingEditStatus `json:"status,omitempty"`
	Merged          bool                     `json:"merged"`
	RejectionReason *string                  `json:"rejectionReason,omitempty"`
	ChangedAt       time.Time                `json:"changedAt"`
}

// ReviewCreatedEvent lets downstream consumers refresh rating aggregates.
type ReviewCreatedEvent struct {
	ReviewID   uuid.UUID `json:"reviewId"`
	BusinessID uuid.UUID `json:"businessId"`
	Rating     int       `json:"rating"`
	CreatedAt  time.Time `json:"createdAt"`
}
