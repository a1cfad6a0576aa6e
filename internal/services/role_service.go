package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ngtsab/memberdir/internal/models"
	apperrors "github.com/ngtsab/memberdir/pkg/errors"
)

// RoleService is the durable store of identity -> capability role
// assignments. Grants and revocations are idempotent: the assignment table's
// composite key makes repeated grants converge to a single row, and revoking
// an absent role is a no-op.
type RoleService struct {
	db *gorm.DB
}

// NewRoleService constructs a RoleService instance.
func NewRoleService(db *gorm.DB) (*RoleService, error) {
	if db == nil {
		return nil, errors.New("role service: db is required")
	}
	return &RoleService{db: db}, nil
}

// Grant adds the role to the identity's set. Granting an already-held role succeeds silently.
func (s *RoleService) Grant(ctx context.Context, identityID, role string) error {
	ctx = ensureContext(ctx)

	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return apperrors.NewBadRequest("identity id is required")
	}
	if !models.IsValidRole(role) {
		return apperrors.NewBadRequest(fmt.Sprintf("unknown role %q", role))
	}

	assignment := models.RoleAssignment{IdentityID: identityID, Role: role}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&assignment).Error
	if err != nil && !isUniqueConstraintError(err) {
		return fmt.Errorf("role service: grant %s: %w", role, err)
	}

	return nil
}

// Revoke removes the role from the identity's set. Revoking an absent role is a no-op.
func (s *RoleService) Revoke(ctx context.Context, identityID, role string) error {
	ctx = ensureContext(ctx)

	if !models.IsValidRole(role) {
		return apperrors.NewBadRequest(fmt.Sprintf("unknown role %q", role))
	}

	err := s.db.WithContext(ctx).
		Where("identity_id = ? AND role = ?", identityID, role).
		Delete(&models.RoleAssignment{}).Error
	if err != nil {
		return fmt.Errorf("role service: revoke %s: %w", role, err)
	}

	return nil
}

// HasRole reports whether the identity currently holds the role.
func (s *RoleService) HasRole(ctx context.Context, identityID, role string) (bool, error) {
	ctx = ensureContext(ctx)

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.RoleAssignment{}).
		Where("identity_id = ? AND role = ?", identityID, role).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("role service: check role: %w", err)
	}

	return count > 0, nil
}

// RolesOf returns the set of roles held by the identity. An identity with no
// assignments yields an empty set, not an error.
func (s *RoleService) RolesOf(ctx context.Context, identityID string) ([]string, error) {
	ctx = ensureContext(ctx)

	var roles []string
	err := s.db.WithContext(ctx).
		Model(&models.RoleAssignment{}).
		Where("identity_id = ?", identityID).
		Order("role").
		Pluck("role", &roles).Error
	if err != nil {
		return nil, fmt.Errorf("role service: list roles: %w", err)
	}

	return roles, nil
}
