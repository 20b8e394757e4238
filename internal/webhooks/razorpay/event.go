package razorpaywebhook

import (
	"encoding/json"
	"strings"

	"github.com/trydo/wts-backend/pkg/enums"
)

// Event is the subset of a gateway webhook this service reads.
type Event struct {
	Event   enums.RazorpayEvent `json:"event"`
	Payload struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// PaymentEntity mirrors payload.payment.entity.
type PaymentEntity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	OrderID  string `json:"order_id"`
	Method   string `json:"method"`
}

func decodeEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, err
	}
	ent := &ev.Payload.Payment.Entity
	ent.ID = strings.TrimSpace(ent.ID)
	ent.Email = strings.ToLower(strings.TrimSpace(ent.Email))
	ent.Currency = strings.ToUpper(strings.TrimSpace(ent.Currency))
	return &ev, nil
}

// status is persisted only for captured events; an entity that still reports a
// pre-settlement state is recorded as captured.
func (p PaymentEntity) status() enums.PaymentStatus {
	if s, err := enums.ParsePaymentStatus(p.Status); err == nil && s.Settled() {
		return s
	}
	return enums.PaymentStatusCaptured
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
