package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/citydirectory/directory-backend/api/middleware"
	"github.com/citydirectory/directory-backend/api/validators"
	"github.com/citydirectory/directory-backend/internal/businesses"
	pkgerrors "github.com/citydirectory/directory-backend/pkg/errors"
	"github.com/citydirectory/directory-backend/pkg/pagination"
)

func actorFromRequest(r *http.Request) (businesses.Actor, error) {
	userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return businesses.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	role := middleware.RoleFromContext(r.Context())
	if !role.IsValid() {
		return businesses.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "role context missing")
	}
	return businesses.Actor{UserID: userID, Role: role}, nil
}

func parsePage(r *http.Request) (int, string, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return 0, "", err
	}
	return limit, strings.TrimSpace(r.URL.Query().Get("cursor")), nil
}
