package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/citydirectory/directory-backend/api/responses"
	"github.com/citydirectory/directory-backend/pkg/enums"
	pkgerrors "github.com/citydirectory/directory-backend/pkg/errors"
	"github.com/citydirectory/directory-backend/pkg/logger"
)

// RequireRole admits requests whose token carries one of allowed. A request
// that reached it without any role never passed Auth and gets a 401.
func RequireRole(logg *logger.Logger, allowed ...enums.ActorRole) func(http.Handler) http.Handler {
	names := make([]string, 0, len(allowed))
	for _, role := range allowed {
		names = append(names, role.String())
	}
	denied := strings.Join(names, " or ") + " role required"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			switch {
			case role == "":
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			case !slices.Contains(allowed, role):
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, denied))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
