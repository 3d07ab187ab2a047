package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/citydirectory/directory-backend/api/responses"
	pkgerrors "github.com/citydirectory/directory-backend/pkg/errors"
	"github.com/citydirectory/directory-backend/pkg/logger"
)

// Recoverer turns a handler panic into a 500 error body. A panic with
// http.ErrAbortHandler is re-raised so net/http drops the connection.
// Nothing is written when the handler already sent its headers.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracked := &statusRecorder{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				err := fmt.Errorf("panic in %s %s: %v", r.Method, r.URL.Path, rec)
				ctx := r.Context()
				if tracked.status != 0 {
					if logg != nil {
						logg.Error(ctx, "panic.after_write", err)
					}
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
			}()
			next.ServeHTTP(tracked, r)
		})
	}
}
