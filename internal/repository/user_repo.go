package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"recycletek/internal/models"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetByEmail returns the oldest user with the email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).Order("id").First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetByKioskID expects an already-normalised (upper-case) code.
func (r *UserRepository) GetByKioskID(ctx context.Context, kioskID string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("kiosk_id = ?", kioskID).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *UserRepository) KioskIDTaken(ctx context.Context, kioskID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("kiosk_id = ?", kioskID).Count(&n).Error
	return n > 0, err
}

// AssignKioskID sets the kiosk id only if the user has none yet. It returns false
// when another request assigned one first.
func (r *UserRepository) AssignKioskID(ctx context.Context, userID uint, kioskID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND kiosk_id IS NULL", userID).
		Update("kiosk_id", kioskID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
