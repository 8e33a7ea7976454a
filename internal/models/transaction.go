package models

import "time"

// Transaction is an immutable record of a completed deposit.
type Transaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	WalletID    uint      `gorm:"not null;index" json:"wallet_id"`
	Type        string    `gorm:"size:20;not null" json:"type"`
	Material    string    `gorm:"size:32;not null" json:"material"`
	Units       int       `gorm:"not null" json:"units"`
	AmountCents int64     `gorm:"not null" json:"amount_cents"`
	Source      string    `gorm:"size:10;not null;default:'app'" json:"source"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Transaction) TableName() string {
	return "transactions"
}
