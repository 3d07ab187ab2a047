package reviews

import (
	"time"

	"github.com/google/uuid"

	"github.com/citydirectory/directory-backend/pkg/db/models"
)

// ReviewDTO is the public shape of a review.
type ReviewDTO struct {
	ID         uuid.UUID `json:"id"`
	BusinessID uuid.UUID `json:"business_id"`
	AuthorName string    `json:"author_name"`
	Rating     int       `json:"rating"`
	Comment    *string   `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListResult wraps a page of reviews and the cursor for the next one.
type ListResult struct {
	Items  []ReviewDTO `json:"items"`
	Cursor string      `json:"cursor"`
}

func toDTO(r models.Review) ReviewDTO {
	return ReviewDTO{
		ID:         r.ID,
		BusinessID: r.BusinessID,
		AuthorName: r.AuthorName,
		Rating:     r.Rating,
		Comment:    r.Comment,
		CreatedAt:  r.CreatedAt,
	}
}
