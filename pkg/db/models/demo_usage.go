package models

import (
	"time"

	"github.com/trydo/wts-backend/pkg/enums"
)

// DemoUsage stores the first time an identity started the demo.
type DemoUsage struct {
	Identity    string                 `gorm:"column:identity;type:text;primaryKey"`
	Kind        enums.DemoIdentityKind `gorm:"column:kind;type:text;not null"`
	FirstUsedAt time.Time              `gorm:"column:first_used_at;not null;index"`
}

// TableName pins the table name used by migrations.
func (DemoUsage) TableName() string {
	return "demo_usage"
}
