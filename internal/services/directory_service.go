package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ngtsab/memberdir/internal/access"
	"github.com/ngtsab/memberdir/internal/models"
	apperrors "github.com/ngtsab/memberdir/pkg/errors"
	"github.com/ngtsab/memberdir/pkg/logger"
)

// ErrProfileNotFound indicates the requested member profile does not exist.
var ErrProfileNotFound = apperrors.New("PROFILE_NOT_FOUND", "Member profile not found", http.StatusNotFound)

// IdentityRemover is the slice of the identity platform the directory needs
// when an admin removes a member: cascading removal of the identity itself.
type IdentityRemover interface {
	RemoveIdentity(ctx context.Context, identityID string) error
}

// UpdateProfileInput enumerates mutable profile attributes. Nil fields are
// left untouched.
type UpdateProfileInput struct {
	FullName                  *string
	PublicRole                *string
	Phone                     *string
	State                     *string
	Organization              *string
	CurrentProjects           *string
	DutiesAndResponsibilities *string
	Biography                 *string
	Linkedin                  *string
	ContactVisibility         *bool
	ProfilePhotoURL           *string
}

// DirectoryFilters captures listing filters.
type DirectoryFilters struct {
	Query string
	State string
}

// ListProfilesOptions controls pagination for directory listing.
type ListProfilesOptions struct {
	Page     int
	PageSize int
	Filters  DirectoryFilters
}

// DirectoryService manages the member profile store and enforces the
// role-and-ownership policy on every read and write.
type DirectoryService struct {
	db         *gorm.DB
	access     *access.Controller
	identities IdentityRemover
	log        *zap.Logger
}

// NewDirectoryService constructs a DirectoryService instance.
func NewDirectoryService(db *gorm.DB, ctl *access.Controller, identities IdentityRemover) (*DirectoryService, error) {
	if db == nil {
		return nil, errors.New("directory service: db is required")
	}
	if ctl == nil {
		return nil, errors.New("directory service: access controller is required")
	}

	return &DirectoryService{
		db:         db,
		access:     ctl,
		identities: identities,
		log:        logger.WithModule("directory"),
	}, nil
}

// Viewer resolves the caller's capability roles for policy evaluation.
func (s *DirectoryService) Viewer(ctx context.Context, identityID string) (access.Viewer, error) {
	return s.access.ViewerFor(ensureContext(ctx), identityID)
}

// List retrieves profiles matching the supplied filters with pagination.
// Callers apply the viewer's visibility when marshalling each entry.
func (s *DirectoryService) List(ctx context.Context, opts ListProfilesOptions) ([]models.Profile, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	query := s.db.WithContext(ctx).Model(&models.Profile{})
	if q := strings.TrimSpace(opts.Filters.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where(
			"LOWER(full_name) LIKE ? OR LOWER(organization) LIKE ? OR LOWER(public_role) LIKE ?",
			pattern, pattern, pattern,
		)
	}
	if state := strings.TrimSpace(opts.Filters.State); state != "" {
		query = query.Where("state = ?", state)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("directory service: count profiles: %w", err)
	}

	var profiles []models.Profile
	if err := query.
		Order("full_name").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&profiles).Error; err != nil {
		return nil, 0, fmt.Errorf("directory service: list profiles: %w", err)
	}

	return profiles, total, nil
}

// GetByID loads a single profile.
func (s *DirectoryService) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	ctx = ensureContext(ctx)

	var profile models.Profile
	err := s.db.WithContext(ctx).First(&profile, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory service: load profile: %w", err)
	}

	return &profile, nil
}

// Update persists mutable attributes for a profile subject to the access
// policy: only the owner or an admin may edit, only an admin may change the
// directory label, and only the owner controls contact visibility.
func (s *DirectoryService) Update(ctx context.Context, viewer access.Viewer, id string, input UpdateProfileInput) (*models.Profile, error) {
	ctx = ensureContext(ctx)

	profile, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !viewer.CanEdit(profile) {
		return nil, apperrors.ErrForbidden
	}

	updates := map[string]any{}

	if input.FullName != nil {
		if name := strings.TrimSpace(*input.FullName); name != "" {
			updates["full_name"] = name
		}
	}
	if input.PublicRole != nil && viewer.CanChangePublicRole() {
		if !models.IsValidPublicRole(*input.PublicRole) {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown public role %q", *input.PublicRole))
		}
		updates["public_role"] = *input.PublicRole
	}
	if input.Phone != nil {
		updates["phone"] = strings.TrimSpace(*input.Phone)
	}
	if input.State != nil {
		updates["state"] = strings.TrimSpace(*input.State)
	}
	if input.Organization != nil {
		updates["organization"] = strings.TrimSpace(*input.Organization)
	}
	if input.CurrentProjects != nil {
		updates["current_projects"] = strings.TrimSpace(*input.CurrentProjects)
	}
	if input.DutiesAndResponsibilities != nil {
		updates["duties_and_responsibilities"] = strings.TrimSpace(*input.DutiesAndResponsibilities)
	}
	if input.Biography != nil {
		updates["biography"] = strings.TrimSpace(*input.Biography)
	}
	if input.Linkedin != nil {
		updates["linkedin"] = strings.TrimSpace(*input.Linkedin)
	}
	if input.ContactVisibility != nil && viewer.ID == profile.ID {
		updates["contact_visibility"] = *input.ContactVisibility
	}
	if input.ProfilePhotoURL != nil {
		updates["profile_photo_url"] = strings.TrimSpace(*input.ProfilePhotoURL)
	}

	if len(updates) == 0 {
		return profile, nil
	}

	if err := s.db.WithContext(ctx).Model(profile).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("directory service: update profile: %w", err)
	}

	if err := s.db.WithContext(ctx).First(profile, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("directory service: reload profile: %w", err)
	}

	return profile, nil
}

// Delete removes a member entirely: role assignments, profile, and the
// backing identity. Only admins may delete, and never themselves.
func (s *DirectoryService) Delete(ctx context.Context, viewer access.Viewer, id string) error {
	ctx = ensureContext(ctx)

	profile, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !viewer.CanDelete(profile) {
		return apperrors.ErrForbidden
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("identity_id = ?", id).Delete(&models.RoleAssignment{}).Error; err != nil {
			return fmt.Errorf("clear roles: %w", err)
		}
		if err := tx.Delete(&models.Profile{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("directory service: delete member: %w", err)
	}

	if s.identities != nil {
		if err := s.identities.RemoveIdentity(ctx, id); err != nil {
			// The directory entry is gone; a dangling identity row cannot log
			// in to anything and is removed on the next delete attempt.
			s.log.Warn("cascading identity removal failed",
				zap.String("identity_id", id),
				zap.Error(err),
			)
		}
	}

	s.log.Info("member deleted",
		zap.String("identity_id", id),
		zap.String("deleted_by", viewer.ID),
	)

	return nil
}
