package controllers

import (
	"net/http"

	"github.com/trydo/wts-backend/api/middleware"
	"github.com/trydo/wts-backend/api/responses"
)

// AdminPing confirms the caller passed the admin gate.
func AdminPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := middleware.ActorFromContext(r.Context())
		responses.WriteSuccess(w, map[string]string{
			"scope":   "admin",
			"status":  "ok",
			"user_id": actor.UserID,
			"email":   actor.Email,
		})
	}
}
