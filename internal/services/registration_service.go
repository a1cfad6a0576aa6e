package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ngtsab/memberdir/internal/identity"
	"github.com/ngtsab/memberdir/internal/models"
	apperrors "github.com/ngtsab/memberdir/pkg/errors"
	"github.com/ngtsab/memberdir/pkg/logger"
	"github.com/ngtsab/memberdir/pkg/metrics"
)

// RegistrationService converts a redeemed invitation plus an established
// identity session into a persisted profile and a baseline member role, then
// retires the invitation.
type RegistrationService struct {
	db    *gorm.DB
	roles *RoleService
	log   *zap.Logger
}

// NewRegistrationService constructs a RegistrationService instance.
func NewRegistrationService(db *gorm.DB, roles *RoleService) (*RegistrationService, error) {
	if db == nil {
		return nil, errors.New("registration service: db is required")
	}
	if roles == nil {
		return nil, errors.New("registration service: role service is required")
	}

	return &RegistrationService{
		db:    db,
		roles: roles,
		log:   logger.WithModule("registration"),
	}, nil
}

// Complete is safe to call any number of times for the same identity and
// converges to one profile, a role set containing member, and no remaining
// invitation. The three writes are deliberately ordered profile, role,
// invitation-delete so a crash between any two steps leaves state a retry
// can repair.
func (s *RegistrationService) Complete(ctx context.Context, sess identity.Session) (*models.Profile, error) {
	ctx = ensureContext(ctx)

	email := normalizeEmail(sess.Email)
	if email == "" {
		return nil, apperrors.NewBadRequest("session has no verified email")
	}
	if sess.IdentityID == "" {
		return nil, apperrors.NewBadRequest("session has no identity")
	}

	var invitation models.Invitation
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&invitation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// The invitation may already have been consumed by an earlier call;
		// an existing profile makes this retry a success.
		var existing models.Profile
		profileErr := s.db.WithContext(ctx).
			First(&existing, "id = ?", sess.IdentityID).Error
		if profileErr == nil {
			metrics.RegistrationsCompleted.WithLabelValues("success").Inc()
			return &existing, nil
		}
		if !errors.Is(profileErr, gorm.ErrRecordNotFound) {
			metrics.RegistrationsCompleted.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("registration service: load profile: %w", profileErr)
		}
		metrics.RegistrationsCompleted.WithLabelValues("no_invitation").Inc()
		return nil, apperrors.New("INVITATION_NOT_FOUND", "No pending invitation found for this email", http.StatusNotFound)
	}
	if err != nil {
		metrics.RegistrationsCompleted.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("registration service: load invitation: %w", err)
	}

	profile := models.Profile{
		ID:                        sess.IdentityID,
		FullName:                  invitation.FullName,
		Email:                     email,
		PublicRole:                invitation.PublicRole,
		Phone:                     invitation.Phone,
		State:                     invitation.State,
		Organization:              invitation.Organization,
		CurrentProjects:           invitation.CurrentProjects,
		DutiesAndResponsibilities: invitation.DutiesAndResponsibilities,
		Biography:                 invitation.Biography,
		Linkedin:                  invitation.Linkedin,
		ContactVisibility:         true,
	}

	// Insert-or-update keyed by identity id. contact_visibility is excluded
	// from the update set: it belongs to the profile owner, not the inviter.
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"full_name", "public_role", "phone", "state", "organization",
				"current_projects", "duties_and_responsibilities", "biography",
				"linkedin", "updated_at",
			}),
		}).
		Create(&profile).Error
	if err != nil {
		metrics.RegistrationsCompleted.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("registration service: write profile: %w", err)
	}

	// Grant failures past this point are non-critical: the profile is
	// persisted and a retry of Complete repairs the role set.
	if err := s.roles.Grant(ctx, sess.IdentityID, models.RoleMember); err != nil {
		s.log.Warn("member role grant failed",
			zap.String("identity_id", sess.IdentityID),
			zap.Error(err),
		)
	}

	if err := s.db.WithContext(ctx).
		Where("email = ?", email).
		Delete(&models.Invitation{}).Error; err != nil {
		s.log.Warn("consumed invitation delete failed",
			zap.String("email", email),
			zap.Error(err),
		)
	}

	metrics.RegistrationsCompleted.WithLabelValues("success").Inc()
	s.log.Info("registration completed",
		zap.String("identity_id", sess.IdentityID),
		zap.String("email", email),
	)

	return &profile, nil
}
