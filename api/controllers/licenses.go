package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trydo/wts-backend/api/responses"
	"github.com/trydo/wts-backend/api/validators"
	"github.com/trydo/wts-backend/internal/licenses"
	"github.com/trydo/wts-backend/internal/notifications"
	pkgerrors "github.com/trydo/wts-backend/pkg/errors"
	"github.com/trydo/wts-backend/pkg/logger"
)

type licenseActivateRequest struct {
	Email      string `json:"email" validate:"required,email,max=254"`
	LicenseKey string `json:"license_key" validate:"required,max=64"`
}

// LicenseActivate binds a license key to the caller's email.
func LicenseActivate(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}

		var body licenseActivateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Activate(r.Context(), licenses.ActivateInput{
			Email:      body.Email,
			LicenseKey: body.LicenseKey,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminLicenseList returns issued licenses with optional email and activation filters.
func AdminLicenseList(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}

		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := licenses.ListParams{
			Email:  r.URL.Query().Get("email"),
			Params: page,
		}
		if params.Activated, err = validators.ParseQueryBool(r, "activated"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminLicenseGet returns one license by key.
func AdminLicenseGet(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}
		item, err := svc.Get(r.Context(), chi.URLParam(r, "key"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// AdminLicenseResend re-delivers the license email synchronously so the
// admin sees provider failures.
func AdminLicenseResend(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification service unavailable"))
			return
		}

		key := licenses.NormalizeKey(chi.URLParam(r, "key"))
		if err := svc.Resend(r.Context(), key); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{"license_key": key, "sent": true})
	}
}
