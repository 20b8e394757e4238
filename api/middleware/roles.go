package middleware

import (
	"net/http"
	"slices"

	"github.com/trydo/wts-backend/api/responses"
	"github.com/trydo/wts-backend/pkg/enums"
	pkgerrors "github.com/trydo/wts-backend/pkg/errors"
	"github.com/trydo/wts-backend/pkg/logger"
)

// RequireRole admits requests whose actor holds one of the allowed roles.
// It must run after Auth; a missing actor is treated as unauthenticated.
func RequireRole(logg *logger.Logger, allowed ...enums.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			switch {
			case !ok:
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			case !slices.Contains(allowed, actor.Role):
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required").
					WithDetails(map[string]any{"role": string(actor.Role)}))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
