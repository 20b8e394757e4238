package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	razorpaywebhook "github.com/trydo/wts-backend/internal/webhooks/razorpay"
	pkgerrors "github.com/trydo/wts-backend/pkg/errors"
	"github.com/trydo/wts-backend/pkg/razorpay"
)

type stubReconciler struct {
	body      []byte
	signature string
	outcome   *razorpaywebhook.Outcome
	err       error
}

func (s *stubReconciler) Reconcile(ctx context.Context, body []byte, signature string) (*razorpaywebhook.Outcome, error) {
	s.body = body
	s.signature = signature
	return s.outcome, s.err
}

func TestRazorpayWebhookPassesRawBody(t *testing.T) {
	payload := []byte(`{"event":"payment.captured",  "payload":{}}`)
	svc := &stubReconciler{outcome: &razorpaywebhook.Outcome{
		Status:    razorpaywebhook.StatusProcessed,
		Event:     "payment.captured",
		PaymentID: "pay_1",
	}}
	req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", bytes.NewReader(payload))
	req.Header.Set(razorpay.SignatureHeader, "abc123")
	resp := httptest.NewRecorder()

	RazorpayWebhook(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !bytes.Equal(svc.body, payload) {
		t.Fatalf("body was altered: %q", svc.body)
	}
	if svc.signature != "abc123" {
		t.Fatalf("expected signature forwarded got %q", svc.signature)
	}

	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data["status"] != "processed" || envelope.Data["payment_id"] != "pay_1" {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
	if _, leaked := envelope.Data["LicenseKey"]; leaked {
		t.Fatalf("license key must not be echoed to the gateway")
	}
}

func TestRazorpayWebhookErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "bad signature", err: pkgerrors.New(pkgerrors.CodeInvalidSignature, "invalid webhook signature"), status: http.StatusBadRequest},
		{name: "in flight", err: pkgerrors.New(pkgerrors.CodeConflict, "payment already being processed"), status: http.StatusConflict},
		{name: "storage", err: pkgerrors.New(pkgerrors.CodeDependency, "record payment"), status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", bytes.NewReader([]byte(`{}`)))
			resp := httptest.NewRecorder()
			RazorpayWebhook(&stubReconciler{err: tc.err}, nil).ServeHTTP(resp, req)
			if resp.Code != tc.status {
				t.Fatalf("expected %d got %d", tc.status, resp.Code)
			}
		})
	}
}
