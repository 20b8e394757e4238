package controllers

import (
	"net/http"

	"github.com/trydo/wts-backend/api/responses"
	"github.com/trydo/wts-backend/pkg/config"
)

type statusResponse struct {
	Status   string `json:"status"`
	Mode     string `json:"mode"`
	Price    int64  `json:"price"`
	Currency string `json:"currency"`
}

// Status reports that the API is running and the price the client should show.
func Status(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, statusResponse{
			Status:   "running",
			Mode:     cfg.App.Mode(),
			Price:    cfg.Razorpay.PriceMajor(),
			Currency: cfg.Razorpay.Currency,
		})
	}
}
