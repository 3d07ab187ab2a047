package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/citydirectory/directory-backend/api/responses"
	"github.com/citydirectory/directory-backend/api/validators"
	"github.com/citydirectory/directory-backend/internal/businesses"
	pkgerrors "github.com/citydirectory/directory-backend/pkg/errors"
	"github.com/citydirectory/directory-backend/pkg/logger"
	"github.com/citydirectory/directory-backend/pkg/types"
)

type ownerChangeFunc func(ctx context.Context, actor businesses.Actor, businessID uuid.UUID, fields types.ListingFields) (*businesses.ManagedBusinessDTO, error)

// ListOwnedBusinesses returns every listing the caller owns with its pending edit.
func ListOwnedBusinesses(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "businesses service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListOwned(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

// GetManagedBusiness returns the full record of a listing the caller may manage.
func GetManagedBusiness(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "businesses service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "businessId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.GetManaged(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// SubmitBusiness creates a pending listing. Admin submissions carry no owner.
func SubmitBusiness(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "businesses service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body types.ListingFields
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Submit(r.Context(), actor, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

// UpdateOwnedBusiness edits a pending listing in place, resubmits a rejected
// one, or files a pending edit against an approved one.
func UpdateOwnedBusiness(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return ownerChange(nil, logg)
	}
	return ownerChange(svc.UpdateOwned, logg)
}

// ResubmitBusiness sends a rejected listing back to moderation.
func ResubmitBusiness(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return ownerChange(nil, logg)
	}
	return ownerChange(svc.Resubmit, logg)
}

// ProposeBusinessEdit files a pending edit against an approved listing.
func ProposeBusinessEdit(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return ownerChange(nil, logg)
	}
	return ownerChange(svc.ProposeEdit, logg)
}

func ownerChange(apply ownerChangeFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if apply == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "businesses service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "businessId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body types.ListingFields
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := apply(r.Context(), actor, id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// DismissPendingEdit removes a rejected pending edit.
func DismissPendingEdit(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "businesses service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "businessId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DismissEdit(r.Context(), actor, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"dismissed": true})
	}
}
