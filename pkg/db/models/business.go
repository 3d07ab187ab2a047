package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/citydirectory/directory-backend/pkg/enums"
	"github.com/citydirectory/directory-backend/pkg/types"
)

// Business is a directory listing. Only approved and visible rows reach public
// surfaces.
type Business struct {
	ID uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`

	Name         types.Localized `gorm:"embedded;embeddedPrefix:name_"`
	Description  types.Localized `gorm:"embedded;embeddedPrefix:description_"`
	Address      types.Localized `gorm:"embedded;embeddedPrefix:address_"`
	OpeningHours types.Localized `gorm:"embedded;embeddedPrefix:opening_hours_"`

	CategoryID     uuid.UUID  `gorm:"column:category_id;type:uuid;not null"`
	SubcategoryID  *uuid.UUID `gorm:"column:subcategory_id;type:uuid"`
	CityID         uuid.UUID  `gorm:"column:city_id;type:uuid;not null"`
	NeighborhoodID *uuid.UUID `gorm:"column:neighborhood_id;type:uuid"`
	ServesAllCity  bool       `gorm:"column:serves_all_city;not null;default:false"`

	Phone          *string        `gorm:"column:phone"`
	WhatsappNumber *string        `gorm:"column:whatsapp_number"`
	Website        *string        `gorm:"column:website"`
	Email          *string        `gorm:"column:email"`
	Social         types.Social   `gorm:"column:social;type:jsonb"`
	Tags           pq.StringArray `gorm:"column:tags;type:text[]"`

	IsVisible   bool `gorm:"column:is_visible;not null;default:false"`
	IsVerified  bool `gorm:"column:is_verified;not null;default:false"`
	IsPinned    bool `gorm:"column:is_pinned;not null;default:false"`
	PinnedOrder *int `gorm:"column:pinned_order"`
	IsTest      bool `gorm:"column:is_test;not null;default:false"`

	Status          enums.BusinessStatus `gorm:"column:status;type:business_status;not null;default:'pending'"`
	RejectionReason *string              `gorm:"column:rejection_reason"`
	ReviewedAt      *time.Time           `gorm:"column:reviewed_at"`
	ReviewedBy      *uuid.UUID           `gorm:"column:reviewed_by;type:uuid"`

	OwnerID   *uuid.UUID `gorm:"column:owner_id;type:uuid"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Business) TableName() string { return "businesses" }

func (b *Business) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Fields returns the owner-editable values of the listing.
func (b Business) Fields() types.ListingFields {
	return types.ListingFields{
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
	}
}

// ApplyFields overwrites the editable values; moderation flags are untouched.
func (b *Business) ApplyFields(f types.ListingFields) {
	b.Name = f.Name
	b.Description = f.Description
	b.Address = f.Address
	b.OpeningHours = f.OpeningHours
	b.CategoryID = f.CategoryID
	b.SubcategoryID = f.SubcategoryID
	b.CityID = f.CityID
	b.NeighborhoodID = f.NeighborhoodID
	b.ServesAllCity = f.ServesAllCity
	b.Phone = f.Phone
	b.WhatsappNumber = f.WhatsappNumber
	b.Website = f.Website
	b.Email = f.Email
	b.Social = f.Social
	b.Tags = pq.StringArray(f.Tags)
}

// IsPublic reports whether the listing may appear in search and detail pages.
func (b Business) IsPublic() bool {
	return b.Status.IsPublic() && b.IsVisible
}
