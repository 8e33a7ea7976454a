package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"recycletek/internal/domain"
	"recycletek/internal/models"
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) GetByID(ctx context.Context, id uint) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := r.db.WithContext(ctx).First(&w, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &w, nil
}

func (r *WithdrawalRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Withdrawal, error) {
	var out []models.Withdrawal
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListPendingOlderThan finds withdrawals stuck in pending, e.g. after a crash
// between the provider call and the local status update.
func (r *WithdrawalRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.Withdrawal, error) {
	var out []models.Withdrawal
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", domain.WithdrawalStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
