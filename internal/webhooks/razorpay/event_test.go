package razorpaywebhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trydo/wts-backend/pkg/enums"
)

func TestDecodeEventNormalizesEntity(t *testing.T) {
	ev, err := decodeEvent([]byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":" pay_9 ","email":" Buyer@Example.COM ","currency":"inr","status":"captured"}}}}`))
	require.NoError(t, err)

	ent := ev.Payload.Payment.Entity
	assert.Equal(t, "pay_9", ent.ID)
	assert.Equal(t, "buyer@example.com", ent.Email)
	assert.Equal(t, "INR", ent.Currency)
	assert.True(t, ev.Event.Captured())
}

func TestPaymentEntityStatus(t *testing.T) {
	cases := map[string]enums.PaymentStatus{
		"captured":   enums.PaymentStatusCaptured,
		"refunded":   enums.PaymentStatusRefunded,
		"authorized": enums.PaymentStatusCaptured,
		"":           enums.PaymentStatusCaptured,
		"weird":      enums.PaymentStatusCaptured,
	}
	for raw, want := range cases {
		assert.Equal(t, want, PaymentEntity{Status: raw}.status(), raw)
	}
}

func TestOptionalTrimsBlank(t *testing.T) {
	assert.Nil(t, optional("   "))
	require.NotNil(t, optional(" +91 98 "))
	assert.Equal(t, "+91 98", *optional(" +91 98 "))
}
