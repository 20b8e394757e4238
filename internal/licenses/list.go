package licenses

import (
	"time"

	"github.com/trydo/wts-backend/pkg/db/models"
	pkgpagination "github.com/trydo/wts-backend/pkg/pagination"
)

type ListParams struct {
	Email     string
	Activated *bool
	pkgpagination.Params
}

type ListResult = pkgpagination.Page[ListItem]

type ListItem struct {
	Key         string     `json:"key"`
	Email       string     `json:"email"`
	PaymentID   string     `json:"payment_id"`
	Activated   bool       `json:"activated"`
	ActivatedBy *string    `json:"activated_by,omitempty"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	EmailSentAt *time.Time `json:"email_sent_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type listQuery struct {
	email     string
	activated *bool
	window    pkgpagination.Window
}

func licensePosition(m models.License) pkgpagination.Cursor {
	return pkgpagination.Cursor{At: m.CreatedAt, ID: m.Key}
}

func toListItem(m models.License) ListItem {
	return ListItem{
		Key:         m.Key,
		Email:       m.Email,
		PaymentID:   m.PaymentID,
		Activated:   m.Activated,
		ActivatedBy: m.ActivatedBy,
		ActivatedAt: m.ActivatedAt,
		EmailSentAt: m.EmailSentAt,
		CreatedAt:   m.CreatedAt,
	}
}
