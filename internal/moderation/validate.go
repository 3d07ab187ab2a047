package moderation

import (
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	pkgerrors "github.com/citydirectory/directory-backend/pkg/errors"
	"github.com/citydirectory/directory-backend/pkg/types"
)

// Field keys match the request body so clients can attach messages to inputs.
const (
	FieldName         = "name"
	FieldCategory     = "category_id"
	FieldSubcategory  = "subcategory_id"
	FieldCity         = "city_id"
	FieldNeighborhood = "neighborhood_id"
	FieldContact      = "contact"
	FieldEmail        = "email"
	FieldWebsite      = "website"
	FieldReason       = "reason"
)

const maxReasonLength = 1000

var validate = validator.New()

// ValidateListing runs the submission guard shared by new listings,
// resubmissions and edits. Fields are expected to be normalized.
func ValidateListing(f types.ListingFields) error {
	errs := pkgerrors.FieldErrors{}

	if f.Name.IsEmpty() {
		errs.Add(FieldName, "name is required in at least one language")
	}
	if f.CategoryID == uuid.Nil {
		errs.Add(FieldCategory, "category is required")
	}
	if f.CityID == uuid.Nil {
		errs.Add(FieldCity, "city is required")
	}
	if !f.ServesAllCity && f.NeighborhoodID == nil {
		errs.Add(FieldNeighborhood, "neighborhood is required unless the business serves the whole city")
	}
	if !f.HasContact() {
		errs.Add(FieldContact, "phone or whatsapp number is required")
	}
	if f.Email != nil && validate.Var(*f.Email, "email") != nil {
		errs.Add(FieldEmail, "email is invalid")
	}
	if f.Website != nil && validate.Var(*f.Website, "url") != nil {
		errs.Add(FieldWebsite, "website must be an absolute url")
	}

	return errs.Err()
}

// ValidateReason caps the optional free-text reason attached to rejections.
func ValidateReason(reason *string) error {
	if reason == nil {
		return nil
	}
	if len([]rune(*reason)) > maxReasonLength {
		errs := pkgerrors.FieldErrors{}
		errs.Add(FieldReason, "reason is too long")
		return errs.Err()
	}
	return nil
}
