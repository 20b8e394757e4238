package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/trydo/wts-backend/api/responses"
	"github.com/trydo/wts-backend/api/validators"
	"github.com/trydo/wts-backend/internal/payments"
	pkgerrors "github.com/trydo/wts-backend/pkg/errors"
	"github.com/trydo/wts-backend/pkg/logger"
	"github.com/trydo/wts-backend/pkg/pagination"
	"github.com/trydo/wts-backend/pkg/razorpay"
)

// OrderCreator opens a gateway order for the configured price.
type OrderCreator interface {
	CreateOrder(ctx context.Context, receipt string) (*razorpay.Order, error)
}

// CreateOrder opens a Razorpay order the checkout widget pays against.
func CreateOrder(orders OrderCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if orders == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway unavailable"))
			return
		}

		receipt := "wts_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
		order, err := orders.CreateOrder(r.Context(), receipt)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithFields(r.Context(), map[string]any{"order_id": order.ID, "receipt": receipt})
		logg.Info(ctx, "payment.order_created")
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// AdminPaymentList returns recorded payments newest first.
func AdminPaymentList(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), payments.ListParams{
			Email:  r.URL.Query().Get("email"),
			Params: page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminPaymentGet returns one payment and the license it produced.
func AdminPaymentGet(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		item, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: validators.SanitizeString(r.URL.Query().Get("cursor"), 512),
	}, nil
}
