package payments

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/trydo/wts-backend/pkg/db/models"
)

// Repository manages persistence for gateway payments.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
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

// Create inserts a payment. Payments are never updated afterwards.
func (r *Repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// Exists reports whether the gateway payment id has already been recorded.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByID loads a payment.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// List returns payments newest first using cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.Payment, error) {
	query := r.db.WithContext(ctx).Model(&models.Payment{})

	if opts.email != "" {
		query = query.Where("email = ?", opts.email)
	}
	var rows []models.Payment
	if err := query.Scopes(opts.window.Scope("received_at", "id")).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
