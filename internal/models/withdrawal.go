package models

import (
	"strconv"
	"time"
)

type Withdrawal struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UserID            uint       `gorm:"not null;index" json:"user_id"`
	WalletID          uint       `gorm:"not null;index" json:"wallet_id"`
	AmountCents       int64      `gorm:"not null" json:"amount_cents"`
	Currency          string     `gorm:"size:3;not null" json:"currency"`
	BankToken         string     `gorm:"size:255;not null" json:"-"`
	Status            string     `gorm:"size:20;not null;index" json:"status"` // pending, completed, failed
	ProviderReference *string    `gorm:"size:128" json:"provider_reference"`
	FailureReason     *string    `gorm:"size:255" json:"failure_reason"`
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`
	ProcessedAt       *time.Time `json:"processed_at"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}

// IdempotencyKey is sent to the payout provider so retried calls pay out at most once.
func (w *Withdrawal) IdempotencyKey() string {
	return "wd-" + strconv.FormatUint(uint64(w.ID), 10)
}
