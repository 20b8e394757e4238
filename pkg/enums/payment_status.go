package enums

import "slices"

// PaymentStatus mirrors the gateway status recorded with a payment.
type PaymentStatus string

const (
	PaymentStatusCreated    PaymentStatus = "created"
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusCaptured   PaymentStatus = "captured"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusFailed     PaymentStatus = "failed"
)

var paymentStatuses = []PaymentStatus{
	PaymentStatusCreated,
	PaymentStatusAuthorized,
	PaymentStatusCaptured,
	PaymentStatusRefunded,
	PaymentStatusFailed,
}

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool { return slices.Contains(paymentStatuses, p) }

// Settled reports whether money has moved, so a license may exist for it.
func (p PaymentStatus) Settled() bool {
	return p == PaymentStatusCaptured || p == PaymentStatusRefunded
}

// ParsePaymentStatus matches gateway values exactly.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return parse("payment status", paymentStatuses, value)
}
