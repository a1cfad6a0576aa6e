package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ngtsab/memberdir/internal/models"
	"github.com/ngtsab/memberdir/pkg/crypto"
)

// BootstrapAdmin describes the initial administrator provisioned on first
// start. Every later member arrives through the invitation flow, so a fresh
// deployment needs exactly one seeded admin to issue the first invites.
type BootstrapAdmin struct {
	Email    string
	Password string
	FullName string
}

// SeedBootstrapAdmin creates the initial admin identity, profile, and role
// grants when no admin exists yet. It is a no-op on an already-provisioned
// database.
func SeedBootstrapAdmin(db *gorm.DB, admin BootstrapAdmin) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	email := strings.ToLower(strings.TrimSpace(admin.Email))
	if email == "" {
		return nil
	}
	if strings.TrimSpace(admin.Password) == "" {
		return errors.New("bootstrap admin: password is required")
	}

	var count int64
	if err := db.Model(&models.RoleAssignment{}).
		Where("role = ?", models.RoleAdmin).
		Count(&count).Error; err != nil {
		return fmt.Errorf("bootstrap admin: count admins: %w", err)
	}
	if count > 0 {
		return nil
	}

	hashed, err := crypto.HashPassword(admin.Password)
	if err != nil {
		return fmt.Errorf("bootstrap admin: hash password: %w", err)
	}

	fullName := strings.TrimSpace(admin.FullName)
	if fullName == "" {
		fullName = email
	}

	return db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		identity := models.Identity{
			Email:           email,
			PasswordHash:    hashed,
			EmailVerifiedAt: &now,
		}
		if err := tx.Create(&identity).Error; err != nil {
			return fmt.Errorf("bootstrap admin: create identity: %w", err)
		}

		profile := models.Profile{
			ID:                identity.ID,
			FullName:          fullName,
			Email:             email,
			PublicRole:        models.PublicRolePresident,
			ContactVisibility: true,
		}
		if err := tx.Create(&profile).Error; err != nil {
			return fmt.Errorf("bootstrap admin: create profile: %w", err)
		}

		grants := []models.RoleAssignment{
			{IdentityID: identity.ID, Role: models.RoleAdmin},
			{IdentityID: identity.ID, Role: models.RoleMember},
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&grants).Error; err != nil {
			return fmt.Errorf("bootstrap admin: grant roles: %w", err)
		}

		return nil
	})
}
