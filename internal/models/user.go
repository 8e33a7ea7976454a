package models

import "time"

type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ExternalID string    `gorm:"uniqueIndex;size:128;not null" json:"-"` // identity-provider subject, or "test-<email>" for accounts first seen through the bypass
	Email      string    `gorm:"size:255;not null;index" json:"email"`
	KioskID    *string   `gorm:"uniqueIndex;size:8" json:"kiosk_id"` // nil until assigned
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// KioskCode returns the assigned kiosk id or "".
func (u *User) KioskCode() string {
	if u.KioskID == nil {
		return ""
	}
	return *u.KioskID
}
