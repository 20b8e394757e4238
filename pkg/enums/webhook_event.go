package enums

// RazorpayEvent is the event name carried by gateway webhooks.
type RazorpayEvent string

const (
	RazorpayEventPaymentCaptured   RazorpayEvent = "payment.captured"
	RazorpayEventPaymentAuthorized RazorpayEvent = "payment.authorized"
	RazorpayEventPaymentFailed     RazorpayEvent = "payment.failed"
	RazorpayEventOrderPaid         RazorpayEvent = "order.paid"
)

// String implements fmt.Stringer.
func (e RazorpayEvent) String() string {
	return string(e)
}

// Captured reports whether the event settles a payment and should mint a license.
func (e RazorpayEvent) Captured() bool {
	return e == RazorpayEventPaymentCaptured
}
