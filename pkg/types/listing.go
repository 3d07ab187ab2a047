package types

import (
	"database/sql/driver"
	"strings"

	"github.com/google/uuid"
)

// ListingFields is the owner-editable surface of a business. It is the payload
// of new submissions and the proposed values stored on a pending edit.
type ListingFields struct {
	Name         Localized `json:"name"`
	Description  Localized `json:"description"`
	Address      Localized `json:"address"`
	OpeningHours Localized `json:"opening_hours"`

	CategoryID     uuid.UUID  `json:"category_id"`
	SubcategoryID  *uuid.UUID `json:"subcategory_id,omitempty"`
	CityID         uuid.UUID  `json:"city_id"`
	NeighborhoodID *uuid.UUID `json:"neighborhood_id,omitempty"`
	ServesAllCity  bool       `json:"serves_all_city"`

	Phone          *string  `json:"phone,omitempty"`
	WhatsappNumber *string  `json:"whatsapp_number,omitempty"`
	Website        *string  `json:"website,omitempty"`
	Email          *string  `json:"email,omitempty"`
	Social         Social   `json:"social"`
	Tags           []string `json:"tags,omitempty"`
}

// Normalized trims text, turns blank optional strings into nil and drops
// empty tags. A listing serving the whole city carries no neighborhood.
func (f ListingFields) Normalized() ListingFields {
	out := f
	out.Name = f.Name.Trimmed()
	out.Description = f.Description.Trimmed()
	out.Address = f.Address.Trimmed()
	out.OpeningHours = f.OpeningHours.Trimmed()
	out.Phone = trimOptional(f.Phone)
	out.WhatsappNumber = trimOptional(f.WhatsappNumber)
	out.Website = trimOptional(f.Website)
	out.Email = trimOptional(f.Email)
	out.Social = Social{
		Facebook:  trimOptional(f.Social.Facebook),
		Instagram: trimOptional(f.Social.Instagram),
		Telegram:  trimOptional(f.Social.Telegram),
		TikTok:    trimOptional(f.Social.TikTok),
		YouTube:   trimOptional(f.Social.YouTube),
	}
	if f.SubcategoryID != nil && *f.SubcategoryID == uuid.Nil {
		out.SubcategoryID = nil
	}
	if f.NeighborhoodID != nil && *f.NeighborhoodID == uuid.Nil {
		out.NeighborhoodID = nil
	}
	if out.ServesAllCity {
		out.NeighborhoodID = nil
	}
	out.Tags = nil
	for _, tag := range f.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			out.Tags = append(out.Tags, tag)
		}
	}
	return out
}

// HasContact reports whether a phone or whatsapp number is present.
func (f ListingFields) HasContact() bool {
	return trimOptional(f.Phone) != nil || trimOptional(f.WhatsappNumber) != nil
}

func (f ListingFields) Value() (driver.Value, error) {
	return marshalJSONB(f)
}

func (f *ListingFields) Scan(value interface{}) error {
	if value == nil {
		*f = ListingFields{}
		return nil
	}
	return unmarshalJSONB("listing fields", value, f)
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
