package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ngtsab/memberdir/internal/access"
	"github.com/ngtsab/memberdir/internal/models"
	apperrors "github.com/ngtsab/memberdir/pkg/errors"
	"github.com/ngtsab/memberdir/pkg/logger"
	"github.com/ngtsab/memberdir/pkg/metrics"
)

// ErrInvitationNotFound indicates no pending invitation exists for an email.
var ErrInvitationNotFound = errors.New("invitation: not found")

// InviteDispatcher is the slice of the identity platform the issuer depends
// on: create the identity and send the invite email with a redirect link.
type InviteDispatcher interface {
	DispatchInvite(ctx context.Context, email string) error
}

// InviteInput describes the fields accepted when inviting a member.
type InviteInput struct {
	Email      string
	FullName   string
	PublicRole string

	Phone                     string
	State                     string
	Organization              string
	CurrentProjects           string
	DutiesAndResponsibilities string
	Biography                 string
	Linkedin                  string
}

// InvitationService owns the pending-invitation registry and the admin-gated
// issue operation. The registry keeps at most one row per normalized email;
// re-inviting overwrites the row and triggers a fresh email.
type InvitationService struct {
	db         *gorm.DB
	dispatcher InviteDispatcher
	access     *access.Controller
	log        *zap.Logger
}

// NewInvitationService constructs an InvitationService with the provided dependencies.
func NewInvitationService(db *gorm.DB, dispatcher InviteDispatcher, ctl *access.Controller) (*InvitationService, error) {
	if db == nil {
		return nil, errors.New("invitation service: db is required")
	}
	if ctl == nil {
		return nil, errors.New("invitation service: access controller is required")
	}

	return &InvitationService{
		db:         db,
		dispatcher: dispatcher,
		access:     ctl,
		log:        logger.WithModule("invitations"),
	}, nil
}

// Invite writes (or overwrites) the invitation for the email and asks the
// identity platform to dispatch the invite. When dispatch fails the written
// row is deleted again so a failed send never blocks re-invitation.
func (s *InvitationService) Invite(ctx context.Context, adminID string, input InviteInput) (*models.Invitation, error) {
	ctx = ensureContext(ctx)

	viewer, err := s.access.ViewerFor(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("invitation service: resolve viewer: %w", err)
	}
	if !viewer.CanInvite() {
		metrics.InvitationsIssued.WithLabelValues("denied").Inc()
		return nil, apperrors.NewForbidden("Only admins can invite members")
	}

	email := normalizeEmail(input.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		metrics.InvitationsIssued.WithLabelValues("invalid").Inc()
		return nil, apperrors.NewBadRequest("email must be a valid email address")
	}
	if !models.IsValidPublicRole(input.PublicRole) {
		metrics.InvitationsIssued.WithLabelValues("invalid").Inc()
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown public role %q", input.PublicRole))
	}

	invitation := models.Invitation{
		Email:                     email,
		FullName:                  strings.TrimSpace(input.FullName),
		PublicRole:                input.PublicRole,
		Phone:                     strings.TrimSpace(input.Phone),
		State:                     strings.TrimSpace(input.State),
		Organization:              strings.TrimSpace(input.Organization),
		CurrentProjects:           strings.TrimSpace(input.CurrentProjects),
		DutiesAndResponsibilities: strings.TrimSpace(input.DutiesAndResponsibilities),
		Biography:                 strings.TrimSpace(input.Biography),
		Linkedin:                  strings.TrimSpace(input.Linkedin),
		InvitedBy:                 strings.TrimSpace(adminID),
	}

	// Single-row-per-email invariant: concurrent invites for the same email
	// race safely to one final row via the store's conflict resolution.
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"full_name", "public_role", "phone", "state", "organization",
				"current_projects", "duties_and_responsibilities", "biography",
				"linkedin", "invited_by", "updated_at",
			}),
		}).
		Create(&invitation).Error
	if err != nil {
		metrics.InvitationsIssued.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("invitation service: store invitation: %w", err)
	}

	if s.dispatcher != nil {
		if dispatchErr := s.dispatcher.DispatchInvite(ctx, email); dispatchErr != nil {
			// The write must not outlive a failed send.
			if cleanupErr := s.Remove(ctx, email); cleanupErr != nil {
				s.log.Error("compensating invitation delete failed",
					zap.String("email", email),
					zap.Error(cleanupErr),
				)
			}
			metrics.InvitationsIssued.WithLabelValues("dispatch_failed").Inc()
			return nil, apperrors.ErrUpstreamUnavailable.WithInternal(dispatchErr)
		}
	}

	metrics.InvitationsIssued.WithLabelValues("success").Inc()
	s.log.Info("invitation issued",
		zap.String("email", email),
		zap.String("invited_by", invitation.InvitedBy),
	)

	return &invitation, nil
}

// Exists reports whether a pending invitation exists for the email. It
// returns only a boolean so callers cannot learn anything else about the row.
func (s *InvitationService) Exists(ctx context.Context, email string) (bool, error) {
	ctx = ensureContext(ctx)

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("email = ?", normalizeEmail(email)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("invitation service: check invitation: %w", err)
	}

	return count > 0, nil
}

// Get loads the pending invitation for the email.
func (s *InvitationService) Get(ctx context.Context, email string) (*models.Invitation, error) {
	ctx = ensureContext(ctx)

	var invitation models.Invitation
	err := s.db.WithContext(ctx).
		Where("email = ?", normalizeEmail(email)).
		First(&invitation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invitation service: load invitation: %w", err)
	}

	return &invitation, nil
}

// Remove deletes the invitation row for the email. Removing an absent row is a no-op.
func (s *InvitationService) Remove(ctx context.Context, email string) error {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).
		Where("email = ?", normalizeEmail(email)).
		Delete(&models.Invitation{}).Error
	if err != nil {
		return fmt.Errorf("invitation service: delete invitation: %w", err)
	}

	return nil
}

// List returns pending invitations, optionally filtered by a case-insensitive
// match on email or full name. Admin surfaces only.
func (s *InvitationService) List(ctx context.Context, search string) ([]models.Invitation, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Invitation{})
	if q := strings.TrimSpace(search); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?", pattern, pattern)
	}

	var invitations []models.Invitation
	if err := query.Order("created_at DESC").Find(&invitations).Error; err != nil {
		return nil, fmt.Errorf("invitation service: list invitations: %w", err)
	}

	return invitations, nil
}

// PendingCount returns the number of invitations awaiting redemption.
func (s *InvitationService) PendingCount(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Invitation{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("invitation service: count invitations: %w", err)
	}

	return count, nil
}
