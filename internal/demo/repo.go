package demo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trydo/wts-backend/pkg/db/models"
)

// Repository persists demo usage rows.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByIdentities loads the rows stored for any of keys.
func (r *Repository) FindByIdentities(ctx context.Context, keys []string) ([]models.DemoUsage, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	var rows []models.DemoUsage
	if err := r.db.WithContext(ctx).
		Where("identity IN ?", keys).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Arm writes first_used_at for usage, replacing an expired row.
func (r *Repository) Arm(ctx context.Context, usage *models.DemoUsage) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "identity"}},
			DoUpdates: clause.AssignmentColumns([]string{"kind", "first_used_at"}),
		}).
		Create(usage).Error
}

// DeleteBefore removes rows first used before cutoff.
func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("first_used_at < ?", cutoff).
		Delete(&models.DemoUsage{})
	return res.RowsAffected, res.Error
}
