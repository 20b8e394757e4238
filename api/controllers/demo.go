package controllers

import (
	"net/http"
	"strconv"

	"github.com/trydo/wts-backend/api/middleware"
	"github.com/trydo/wts-backend/api/responses"
	"github.com/trydo/wts-backend/api/validators"
	"github.com/trydo/wts-backend/internal/demo"
	pkgerrors "github.com/trydo/wts-backend/pkg/errors"
	"github.com/trydo/wts-backend/pkg/logger"
)

const maxFingerprintLen = 256

type demoRequest struct {
	Fingerprint string `json:"fingerprint" validate:"max=256"`
}

// DemoCheck answers whether the caller may start the demo. A denial is a 403
// carrying Retry-After.
func DemoCheck(svc demo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "demo service unavailable"))
			return
		}

		ids, err := demoIdentities(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.Check(r.Context(), ids)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !status.Allowed {
			retryAfter := status.RetryAfterSeconds()
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDemoExhausted, "demo already used").
				WithDetails(map[string]any{
					"allowed":             false,
					"retry_after_seconds": retryAfter,
					"expires_at":          status.ExpiresAt,
				}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"allowed": true})
	}
}

// DemoRecord starts the demo window for the caller.
func DemoRecord(svc demo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "demo service unavailable"))
			return
		}

		ids, err := demoIdentities(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Start(r.Context(), ids)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"success":    true,
			"started":    session.Started,
			"expires_at": session.ExpiresAt,
		})
	}
}

func demoIdentities(r *http.Request) ([]demo.Identity, error) {
	var body demoRequest
	if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
		return nil, err
	}
	return demo.Identities(
		middleware.ClientIP(r),
		validators.SanitizeString(body.Fingerprint, maxFingerprintLen),
	), nil
}
