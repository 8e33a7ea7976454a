package models

import "time"

type Wallet struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	BalanceCents int64     `gorm:"not null;default:0;check:balance_cents >= 0" json:"balance_cents"`
	Currency     string    `gorm:"size:3;not null;default:'usd'" json:"currency"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Wallet) TableName() string {
	return "wallets"
}
