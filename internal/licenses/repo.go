package licenses

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trydo/wts-backend/pkg/db/models"
)

// Repository exposes license persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a license repository tied to the provided GORM DB.
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

// Create inserts a new license row.
func (r *Repository) Create(ctx context.Context, license *models.License) (*models.License, error) {
	if err := r.db.WithContext(ctx).Create(license).Error; err != nil {
		return nil, err
	}
	return license, nil
}

// FindByKey loads a license by key.
func (r *Repository) FindByKey(ctx context.Context, key string) (*models.License, error) {
	var license models.License
	if err := r.db.WithContext(ctx).First(&license, "key = ?", key).Error; err != nil {
		return nil, err
	}
	return &license, nil
}

// FindByKeyForUpdate loads a license and locks its row until the transaction ends.
func (r *Repository) FindByKeyForUpdate(ctx context.Context, key string) (*models.License, error) {
	var license models.License
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&license, "key = ?", key).Error; err != nil {
		return nil, err
	}
	return &license, nil
}

// FindByPaymentID loads the license minted for a payment.
func (r *Repository) FindByPaymentID(ctx context.Context, paymentID string) (*models.License, error) {
	var license models.License
	if err := r.db.WithContext(ctx).First(&license, "payment_id = ?", paymentID).Error; err != nil {
		return nil, err
	}
	return &license, nil
}

// Exists reports whether key is already stored.
func (r *Repository) Exists(ctx context.Context, key string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.License{}).Where("key = ?", key).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkActivated flags the license activated. activated_by and activated_at are
// only written by the first activation.
func (r *Repository) MarkActivated(ctx context.Context, key, by string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.License{}).
		Where("key = ?", key).
		Updates(map[string]any{
			"activated":    true,
			"activated_by": gorm.Expr("COALESCE(activated_by, ?)", by),
			"activated_at": gorm.Expr("COALESCE(activated_at, ?)", at),
		}).Error
}

// StampEmailSent records a successful license email delivery.
func (r *Repository) StampEmailSent(ctx context.Context, key string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.License{}).
		Where("key = ?", key).
		UpdateColumn("email_sent_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List returns licenses newest first using cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.License, error) {
	query := r.db.WithContext(ctx).Model(&models.License{})

	if opts.email != "" {
		query = query.Where("email = ?", opts.email)
	}
	if opts.activated != nil {
		query = query.Where("activated = ?", *opts.activated)
	}
	var rows []models.License
	if err := query.Scopes(opts.window.Scope("created_at", "key")).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListUnsent returns licenses with an email address that were never mailed
// and were created inside [from, to), oldest first.
func (r *Repository) ListUnsent(ctx context.Context, from, to time.Time, limit int) ([]models.License, error) {
	var rows []models.License
	if err := r.db.WithContext(ctx).
		Where("email_sent_at IS NULL").
		Where("email <> ''").
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
