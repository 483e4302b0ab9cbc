package models

import (
	"strings"
	"time"
)

type User struct {
	ID                uint   `json:"id" gorm:"primaryKey"`
	Email             string `json:"email" gorm:"uniqueIndex;not null;size:255;default:''"`
	EncryptedPassword string `json:"-" gorm:"not null;size:255;default:''"`

	// Recoverable
	ResetPasswordToken  *string    `json:"-" gorm:"uniqueIndex;size:64"`
	ResetPasswordSentAt *time.Time `json:"-"`

	// Rememberable
	RememberCreatedAt *time.Time `json:"-"`

	// Trackable
	SignInCount     int        `json:"sign_in_count" gorm:"not null;default:0"`
	CurrentSignInAt *time.Time `json:"current_sign_in_at"`
	LastSignInAt    *time.Time `json:"last_sign_in_at"`
	CurrentSignInIP string     `json:"-" gorm:"size:64"`
	LastSignInIP    string     `json:"-" gorm:"size:64"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Bikes []Bike `json:"-" gorm:"foreignKey:UserID"`
}

// NormalizeEmail lower-cases and trims an address the way it is stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
