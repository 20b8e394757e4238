package models

import "time"

// License is a purchasable key minted for exactly one payment.
type License struct {
	Key         string     `gorm:"column:key;type:text;primaryKey"`
	Email       string     `gorm:"column:email;type:text;not null"`
	PaymentID   string     `gorm:"column:payment_id;type:text;not null;uniqueIndex"`
	Activated   bool       `gorm:"column:activated;not null;default:false"`
	ActivatedBy *string    `gorm:"column:activated_by;type:text"`
	ActivatedAt *time.Time `gorm:"column:activated_at"`
	EmailSentAt *time.Time `gorm:"column:email_sent_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
