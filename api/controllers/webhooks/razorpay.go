package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/trydo/wts-backend/api/responses"
	razorpaywebhook "github.com/trydo/wts-backend/internal/webhooks/razorpay"
	pkgerrors "github.com/trydo/wts-backend/pkg/errors"
	"github.com/trydo/wts-backend/pkg/logger"
	"github.com/trydo/wts-backend/pkg/razorpay"
)

const maxWebhookBody = 1 << 20

type RazorpayReconciler interface {
	Reconcile(ctx context.Context, body []byte, signature string) (*razorpaywebhook.Outcome, error)
}

// RazorpayWebhook hands the raw body and signature to the reconciler. Any
// non-2xx response makes Razorpay redeliver.
func RazorpayWebhook(svc RazorpayReconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		outcome, err := svc.Reconcile(ctx, payload, r.Header.Get(razorpay.SignatureHeader))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}
