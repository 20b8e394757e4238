package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/trydo/wts-backend/pkg/db/models"
	"github.com/trydo/wts-backend/pkg/enums"
	pkgerrors "github.com/trydo/wts-backend/pkg/errors"
	"github.com/trydo/wts-backend/pkg/pagination"
)

// Service exposes read access to recorded payments.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	// Get returns one payment with the license key minted for it, if any.
	Get(ctx context.Context, id string) (*PaymentDTO, error)
}

// LicenseFinder resolves the license minted for a payment.
type LicenseFinder interface {
	FindByPaymentID(ctx context.Context, paymentID string) (*models.License, error)
}

// ListParams configures pagination for payments.
type ListParams struct {
	Email string
	pagination.Params
}

// ListResult is one page of payments.
type ListResult = pagination.Page[PaymentDTO]

// PaymentDTO is the admin view of a payment.
type PaymentDTO struct {
	ID         string              `json:"id"`
	Email      string              `json:"email"`
	Amount     int64               `json:"amount"`
	Currency   string              `json:"currency"`
	Status     enums.PaymentStatus `json:"status"`
	OrderID    *string             `json:"order_id,omitempty"`
	Method     *string             `json:"method,omitempty"`
	ReceivedAt time.Time           `json:"received_at"`
	LicenseKey *string             `json:"license_key,omitempty"`
}

type listQuery struct {
	email  string
	window pagination.Window
}

type service struct {
	repo     *Repository
	licenses LicenseFinder
}

// NewService wires the payments read service.
func NewService(repo *Repository, licenses LicenseFinder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if licenses == nil {
		return nil, fmt.Errorf("license finder required")
	}
	return &service{repo: repo, licenses: licenses}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	window, err := pagination.Open(params.Params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.List(ctx, listQuery{
		email:  strings.ToLower(strings.TrimSpace(params.Email)),
		window: window,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}

	page := pagination.Collect(rows, window, paymentPosition, toDTO)
	return &page, nil
}

func paymentPosition(p models.Payment) pagination.Cursor {
	return pagination.Cursor{At: p.ReceivedAt, ID: p.ID}
}

func (s *service) Get(ctx context.Context, id string) (*PaymentDTO, error) {
	payment, err := s.repo.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	dto := toDTO(*payment)

	license, err := s.licenses.FindByPaymentID(ctx, payment.ID)
	switch {
	case err == nil:
		dto.LicenseKey = &license.Key
	case errors.Is(err, gorm.ErrRecordNotFound):
		// non-captured payments never mint a license
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment license")
	}
	return &dto, nil
}

func toDTO(m models.Payment) PaymentDTO {
	return PaymentDTO{
		ID:         m.ID,
		Email:      m.Email,
		Amount:     m.Amount,
		Currency:   m.Currency,
		Status:     m.Status,
		OrderID:    m.OrderID,
		Method:     m.Method,
		ReceivedAt: m.ReceivedAt,
	}
}
