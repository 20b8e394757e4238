package models

import (
	"time"

	"github.com/trydo/wts-backend/pkg/enums"
)

// Payment is the immutable record of a captured gateway payment.
type Payment struct {
	ID         string              `gorm:"column:id;type:text;primaryKey"`
	Email      string              `gorm:"column:email;type:text;not null"`
	Amount     int64               `gorm:"column:amount;not null"`
	Currency   string              `gorm:"column:currency;type:text;not null"`
	Status     enums.PaymentStatus `gorm:"column:status;type:text;not null"`
	OrderID    *string             `gorm:"column:order_id;type:text"`
	Method     *string             `gorm:"column:method;type:text"`
	ReceivedAt time.Time           `gorm:"column:received_at;not null"`
}
