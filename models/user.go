package models

import "time"

type User struct {
	ID           uint   `json:"id" gorm:"primary_key"`
	Email        string `json:"email" gorm:"not null;unique_index"`
	PasswordHash string `json:"-" gorm:"not null"`
	BusinessID   uint   `json:"business_id" gorm:"not null;index"`
	IsAdmin      bool   `json:"is_admin" gorm:"not null;default:false"`

	// Only the bcrypt hash of a reset token is stored.
	ResetTokenHash      *string    `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	Business  *Business `json:"-" gorm:"foreignkey:BusinessID"`
}
