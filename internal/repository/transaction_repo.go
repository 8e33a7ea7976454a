package repository

import (
	"context"

	"gorm.io/gorm"

	"recycletek/internal/models"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// ListByUser returns the user's deposits, newest first.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Transaction, error) {
	var out []models.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
