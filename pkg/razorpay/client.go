package razorpay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	rzp "github.com/razorpay/razorpay-go"

	"github.com/trydo/wts-backend/pkg/config"
	pkgerrors "github.com/trydo/wts-backend/pkg/errors"
	"github.com/trydo/wts-backend/pkg/logger"
)

var (
	errKeyIDRequired     = errors.New("razorpay key id is required")
	errKeySecretRequired = errors.New("razorpay key secret is required")
)

type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Order is the subset of a gateway order returned to checkout clients.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
	KeyID    string `json:"key_id"`
}

// Client wraps the Razorpay SDK for order creation.
type Client struct {
	orders   orderAPI
	keyID    string
	amount   int64
	currency string
}

// NewClient initializes the SDK with the configured key pair.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errKeySecretRequired
	}

	api := rzp.NewClient(keyID, keySecret)

	if logg != nil {
		logg.Info(ctx, "razorpay client initialized")
	}
	return newClient(api.Order, cfg), nil
}

func newClient(orders orderAPI, cfg config.RazorpayConfig) *Client {
	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "INR"
	}
	return &Client{
		orders:   orders,
		keyID:    strings.TrimSpace(cfg.KeyID),
		amount:   cfg.PriceMinor,
		currency: currency,
	}
}

// CreateOrder opens a gateway order for the configured license price.
func (c *Client) CreateOrder(ctx context.Context, receipt string) (*Order, error) {
	if c == nil || c.orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "razorpay client unavailable")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := map[string]interface{}{
		"amount":          c.amount,
		"currency":        c.currency,
		"payment_capture": 1,
	}
	if receipt != "" {
		data["receipt"] = receipt
	}

	resp, err := c.orders.Create(data, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create razorpay order")
	}

	order := &Order{
		ID:       stringField(resp, "id"),
		Amount:   int64Field(resp, "amount", c.amount),
		Currency: stringField(resp, "currency"),
		Receipt:  stringField(resp, "receipt"),
		KeyID:    c.keyID,
	}
	if order.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "razorpay order response missing id")
	}
	if order.Currency == "" {
		order.Currency = c.currency
	}
	return order, nil
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func int64Field(m map[string]interface{}, key string, fallback int64) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return fallback
	}
}
