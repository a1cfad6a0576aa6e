package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Identity is the authenticated principal a member becomes once their
// invitation has been redeemed. It is owned by the identity layer; directory
// code only ever reacts to its existence.
type Identity struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `json:"-"`

	EmailVerifiedAt *time.Time `json:"email_verified_at"`

	// Redeemable invite link state. Only the hash is stored; the raw token
	// travels in the invite email.
	InviteTokenHash      *string    `gorm:"index" json:"-"`
	InviteTokenExpiresAt *time.Time `json:"-"`

	LastLoginAt *time.Time `json:"last_login_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (i *Identity) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
