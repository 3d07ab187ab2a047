package search

import (
	"time"

	"github.com/google/uuid"

	"github.com/citydirectory/directory-backend/pkg/db/models"
	"github.com/citydirectory/directory-backend/pkg/enums"
	"github.com/citydirectory/directory-backend/pkg/types"
)

// RatingSummary aggregates the reviews of one business.
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

// Listing is the public card of a business in a result set.
type Listing struct {
	ID             uuid.UUID       `json:"id"`
	Name           types.Localized `json:"name"`
	Description    types.Localized `json:"description"`
	Address        types.Localized `json:"address"`
	OpeningHours   types.Localized `json:"opening_hours"`
	CategoryID     uuid.UUID       `json:"category_id"`
	SubcategoryID  *uuid.UUID      `json:"subcategory_id,omitempty"`
	CityID         uuid.UUID       `json:"city_id"`
	NeighborhoodID *uuid.UUID      `json:"neighborhood_id,omitempty"`
	ServesAllCity  bool            `json:"serves_all_city"`
	Phone          *string         `json:"phone,omitempty"`
	WhatsappNumber *string         `json:"whatsapp_number,omitempty"`
	Website        *string         `json:"website,omitempty"`
	Email          *string         `json:"email,omitempty"`
	Social         types.Social    `json:"social"`
	Tags           []string        `json:"tags,omitempty"`
	IsVerified     bool            `json:"is_verified"`
	IsPinned       bool            `json:"is_pinned"`
	PinnedOrder    *int            `json:"pinned_order,omitempty"`
	Rating         RatingSummary   `json:"rating"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewListing builds the public card of b.
func NewListing(b models.Business, rating RatingSummary) Listing {
	return Listing{
		ID:             b.ID,
		Name:           b.Name,
		Description:    b.Description,
		Address:        b.Address,
		OpeningHours:   b.OpeningHours,
		CategoryID:     b.CategoryID,
		SubcategoryID:  b.SubcategoryID,
		CityID:         b.CityID,
		NeighborhoodID: b.NeighborhoodID,
		ServesAllCity:  b.ServesAllCity,
		Phone:          b.Phone,
		WhatsappNumber: b.WhatsappNumber,
		Website:        b.Website,
		Email:          b.Email,
		Social:         b.Social,
		Tags:           []string(b.Tags),
		IsVerified:     b.IsVerified,
		IsPinned:       b.IsPinned,
		PinnedOrder:    b.PinnedOrder,
		Rating:         rating,
		CreatedAt:      b.CreatedAt,
	}
}

// ResultSet is the resolver output. Exact is populated on its own; otherwise
// either fallback, both, or neither may carry listings.
type ResultSet struct {
	Tier                 enums.SearchTier           `json:"tier"`
	Tiers                []enums.SearchTier         `json:"tiers"`
	Exact                []Listing                  `json:"exact"`
	PrimaryFallback      []Listing                  `json:"primary_fallback"`
	SecondaryFallback    []Listing                  `json:"secondary_fallback"`
	HasPrimaryFallback   bool                       `json:"has_primary_fallback"`
	HasSecondaryFallback bool                       `json:"has_secondary_fallback"`
	Totals               map[enums.SearchTier]int64 `json:"totals"`
}

func (r *ResultSet) settle() {
	r.HasPrimaryFallback = len(r.PrimaryFallback) > 0
	r.HasSecondaryFallback = len(r.SecondaryFallback) > 0
	r.Tiers = r.Tiers[:0]
	if len(r.Exact) > 0 {
		r.Tiers = append(r.Tiers, enums.SearchTierExact)
	}
	if r.HasPrimaryFallback {
		r.Tiers = append(r.Tiers, enums.SearchTierPrimaryFallback)
	}
	if r.HasSecondaryFallback {
		r.Tiers = append(r.Tiers, enums.SearchTierSecondaryFallback)
	}
	if len(r.Tiers) == 0 {
		r.Tier = enums.SearchTierEmpty
		return
	}
	r.Tier = r.Tiers[0]
}

// clone copies the tier slices so per-request shuffles and views never touch a
// cached value.
func (r *ResultSet) clone() *ResultSet {
	out := *r
	out.Exact = append([]Listing(nil), r.Exact...)
	out.PrimaryFallback = append([]Listing(nil), r.PrimaryFallback...)
	out.SecondaryFallback = append([]Listing(nil), r.SecondaryFallback...)
	out.Tiers = append([]enums.SearchTier(nil), r.Tiers...)
	out.Totals = make(map[enums.SearchTier]int64, len(r.Totals))
	for k, v := range r.Totals {
		out.Totals[k] = v
	}
	return &out
}

func (r *ResultSet) each(fn func([]Listing) []Listing) {
	r.Exact = fn(r.Exact)
	r.PrimaryFallback = fn(r.PrimaryFallback)
	r.SecondaryFallback = fn(r.SecondaryFallback)
}
