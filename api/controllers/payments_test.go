package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/trydo/wts-backend/internal/payments"
	pkgerrors "github.com/trydo/wts-backend/pkg/errors"
	"github.com/trydo/wts-backend/pkg/razorpay"
)

type stubOrderCreator struct {
	receipt string
	err     error
}

func (s *stubOrderCreator) CreateOrder(ctx context.Context, receipt string) (*razorpay.Order, error) {
	s.receipt = receipt
	if s.err != nil {
		return nil, s.err
	}
	return &razorpay.Order{ID: "order_123", Amount: 49900, Currency: "INR", Receipt: receipt, KeyID: "rzp_test_key"}, nil
}

type stubPaymentsService struct {
	params payments.ListParams
	gotID  string
	err    error
}

func (s *stubPaymentsService) List(ctx context.Context, params payments.ListParams) (*payments.ListResult, error) {
	s.params = params
	if s.err != nil {
		return nil, s.err
	}
	return &payments.ListResult{Items: []payments.PaymentDTO{{ID: "pay_1", Email: "buyer@example.com"}}}, nil
}

func (s *stubPaymentsService) Get(ctx context.Context, id string) (*payments.PaymentDTO, error) {
	s.gotID = id
	if s.err != nil {
		return nil, s.err
	}
	key := "WTS-7KQ2M-XH9PD-3RTVA-N8BWE"
	return &payments.PaymentDTO{ID: id, Email: "buyer@example.com", LicenseKey: &key}, nil
}

func TestCreateOrder(t *testing.T) {
	orders := &stubOrderCreator{}
	req := httptest.NewRequest(http.MethodPost, "/api/payment/create-order", nil)
	resp := httptest.NewRecorder()

	CreateOrder(orders, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if !strings.HasPrefix(orders.receipt, "wts_") || len(orders.receipt) != 20 {
		t.Fatalf("unexpected receipt %q", orders.receipt)
	}

	var envelope struct {
		Data razorpay.Order `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != "order_123" || envelope.Data.KeyID != "rzp_test_key" {
		t.Fatalf("unexpected order %+v", envelope.Data)
	}
}

func TestCreateOrderGatewayFailure(t *testing.T) {
	orders := &stubOrderCreator{err: pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("timeout"), "create razorpay order")}
	req := httptest.NewRequest(http.MethodPost, "/api/payment/create-order", nil)
	resp := httptest.NewRecorder()

	CreateOrder(orders, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestAdminPaymentListPagination(t *testing.T) {
	svc := &stubPaymentsService{}
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/payments?limit=5&cursor=abc&email=buyer@example.com", nil)
	resp := httptest.NewRecorder()

	AdminPaymentList(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.params.Limit != 5 || svc.params.Cursor != "abc" || svc.params.Email != "buyer@example.com" {
		t.Fatalf("unexpected params %+v", svc.params)
	}
}

func TestAdminPaymentListRejectsLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/payments?limit=1000", nil)
	resp := httptest.NewRecorder()

	AdminPaymentList(&stubPaymentsService{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminPaymentGet(t *testing.T) {
	svc := &stubPaymentsService{}
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/payments/pay_1", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "pay_1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	resp := httptest.NewRecorder()

	AdminPaymentGet(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.gotID != "pay_1" {
		t.Fatalf("expected id forwarded, got %q", svc.gotID)
	}
	var envelope struct {
		Data payments.PaymentDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.LicenseKey == nil || *envelope.Data.LicenseKey != "WTS-7KQ2M-XH9PD-3RTVA-N8BWE" {
		t.Fatalf("expected license key in response, got %+v", envelope.Data)
	}

	svc.err = pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	resp = httptest.NewRecorder()
	AdminPaymentGet(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
