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
)

type reasonBody struct {
	Reason *string `json:"reason,omitempty"`
}

type decisionFunc func(ctx context.Context, actor businesses.Actor, businessID uuid.UUID, r *http.Request) (*businesses.ManagedBusinessDTO, error)

// ModerationQueue pages pending listings or pending edits, oldest first.
func ModerationQueue(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "businesses service unavailable"))
			return
		}

		limit, cursor, err := parsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		kind := businesses.QueueKind(validators.SanitizeString(r.URL.Query().Get("kind"), 20))
		if kind == "" {
			kind = businesses.QueueBusinesses
		}

		result, err := svc.ListModerationQueue(r.Context(), businesses.QueueParams{Kind: kind, Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ApproveBusiness publishes a pending listing. The body is optional.
func ApproveBusiness(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return decision(svc, logg, func(ctx context.Context, actor businesses.Actor, id uuid.UUID, r *http.Request) (*businesses.ManagedBusinessDTO, error) {
		var body businesses.ApproveInput
		if err := decodeOptionalBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Approve(ctx, actor, id, body)
	})
}

// RejectBusiness rejects a pending listing with an optional reason.
func RejectBusiness(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return decision(svc, logg, func(ctx context.Context, actor businesses.Actor, id uuid.UUID, r *http.Request) (*businesses.ManagedBusinessDTO, error) {
		var body reasonBody
		if err := decodeOptionalBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Reject(ctx, actor, id, body.Reason)
	})
}

// ApprovePendingEdit merges a pending edit into the live listing.
func ApprovePendingEdit(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return decision(svc, logg, func(ctx context.Context, actor businesses.Actor, id uuid.UUID, _ *http.Request) (*businesses.ManagedBusinessDTO, error) {
		return svc.ApproveEdit(ctx, actor, id)
	})
}

// RejectPendingEdit keeps the live listing and marks the edit rejected.
func RejectPendingEdit(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return decision(svc, logg, func(ctx context.Context, actor businesses.Actor, id uuid.UUID, r *http.Request) (*businesses.ManagedBusinessDTO, error) {
		var body reasonBody
		if err := decodeOptionalBody(r, &body); err != nil {
			return nil, err
		}
		return svc.RejectEdit(ctx, actor, id, body.Reason)
	})
}

// AdminUpdateBusiness edits fields and flags directly.
func AdminUpdateBusiness(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return decision(svc, logg, func(ctx context.Context, actor businesses.Actor, id uuid.UUID, r *http.Request) (*businesses.ManagedBusinessDTO, error) {
		var body businesses.AdminUpdateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.AdminUpdate(ctx, actor, id, body)
	})
}

func decision(svc businesses.Service, logg *logger.Logger, run decisionFunc) http.HandlerFunc {
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

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithBusinessID(ctx, id.String())
		}

		dto, err := run(ctx, actor, id, r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func decodeOptionalBody(r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil
	}
	return validators.DecodeJSONBody(r, dest)
}
