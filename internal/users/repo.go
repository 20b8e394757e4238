package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trydo/wts-backend/pkg/db/models"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
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

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail retrieves the user matching the provided email. Lookups are
// normalized so callers may pass raw input.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindOrCreate returns the user for email, inserting one built from dto when
// none exists. created reports whether an insert happened.
func (r *Repository) FindOrCreate(ctx context.Context, dto CreateUserDTO) (user *models.User, created bool, err error) {
	user, err = r.FindByEmail(ctx, dto.Email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	user, err = r.Create(ctx, dto)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// AttachLicense points the user at key without touching activation state.
func (r *Repository) AttachLicense(ctx context.Context, id uuid.UUID, key string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("license_key", key).Error
}

// MarkActivated binds key to the user and flags them activated. The first
// activation time is kept on repeat calls.
func (r *Repository) MarkActivated(ctx context.Context, id uuid.UUID, key string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"license_key":  key,
			"activated":    true,
			"activated_at": gorm.Expr("COALESCE(activated_at, ?)", at),
		}).Error
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// ReplaceTempPassword swaps current for next only while the user still holds
// current and has never logged in. It reports whether the row changed.
func (r *Repository) ReplaceTempPassword(ctx context.Context, id uuid.UUID, current, next string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND password_hash = ? AND last_login_at IS NULL", id, current).
		UpdateColumn("password_hash", next)
	return res.RowsAffected == 1, res.Error
}
