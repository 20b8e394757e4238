package controllers

import (
	"context"
	"net/http"

	"github.com/trydo/wts-backend/api/responses"
	"github.com/trydo/wts-backend/api/validators"
	"github.com/trydo/wts-backend/internal/auth"
	pkgerrors "github.com/trydo/wts-backend/pkg/errors"
	"github.com/trydo/wts-backend/pkg/logger"
)

// tokenHeader mirrors the issued JWT for clients that cannot read the body.
const tokenHeader = "X-WTS-Token"

type loginFunc[T interface{ BearerToken() string }] func(auth.Service, context.Context, auth.LoginRequest) (T, error)

// AuthLogin exchanges license-holder credentials for a session token.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return loginHandler(svc, logg, loginFunc[*auth.LoginResponse](auth.Service.Login))
}

// AdminAuthLogin is AuthLogin restricted to admin accounts.
func AdminAuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return loginHandler(svc, logg, loginFunc[*auth.AdminLoginResponse](auth.Service.AdminLogin))
}

func loginHandler[T interface{ BearerToken() string }](svc auth.Service, logg *logger.Logger, login loginFunc[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := login(svc, ctx, body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		w.Header().Set(tokenHeader, result.BearerToken())
		responses.WriteSuccess(w, result)
	}
}
