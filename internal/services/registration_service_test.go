package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ngtsab/memberdir/internal/identity"
	"github.com/ngtsab/memberdir/internal/models"
	apperrors "github.com/ngtsab/memberdir/pkg/errors"
)

func TestCompleteConsumesInvitation(t *testing.T) {
	db := newTestDB(t)
	roles, err := NewRoleService(db)
	require.NoError(t, err)
	svc, err := NewRegistrationService(db, roles)
	require.NoError(t, err)

	invitation := models.Invitation{
		Email:      "new@example.org",
		FullName:   "New Member",
		PublicRole: models.PublicRoleStateRepresentative,
		State:      "Oregon",
	}
	require.NoError(t, db.Create(&invitation).Error)

	ident := models.Identity{Email: "new@example.org"}
	require.NoError(t, db.Create(&ident).Error)

	ctx := context.Background()
	profile, err := svc.Complete(ctx, identity.Session{IdentityID: ident.ID, Email: "new@example.org"})
	require.NoError(t, err)
	require.Equal(t, ident.ID, profile.ID)
	require.Equal(t, "New Member", profile.FullName)
	require.Equal(t, models.PublicRoleStateRepresentative, profile.PublicRole)
	require.True(t, profile.ContactVisibility)

	has, err := roles.HasRole(ctx, ident.ID, models.RoleMember)
	require.NoError(t, err)
	require.True(t, has)

	var remaining int64
	require.NoError(t, db.Model(&models.Invitation{}).Count(&remaining).Error)
	require.Zero(t, remaining)
}

func TestCompleteIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	roles, err := NewRoleService(db)
	require.NoError(t, err)
	svc, err := NewRegistrationService(db, roles)
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.Invitation{
		Email:      "new@example.org",
		FullName:   "New Member",
		PublicRole: models.PublicRoleAdvisor,
	}).Error)
	ident := models.Identity{Email: "new@example.org"}
	require.NoError(t, db.Create(&ident).Error)

	ctx := context.Background()
	sess := identity.Session{IdentityID: ident.ID, Email: "new@example.org"}

	first, err := svc.Complete(ctx, sess)
	require.NoError(t, err)

	second, err := svc.Complete(ctx, sess)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var profiles int64
	require.NoError(t, db.Model(&models.Profile{}).Count(&profiles).Error)
	require.EqualValues(t, 1, profiles)

	var assignments int64
	require.NoError(t, db.Model(&models.RoleAssignment{}).
		Where("identity_id = ?", ident.ID).
		Count(&assignments).Error)
	require.EqualValues(t, 1, assignments)
}

func TestCompleteWithoutInvitationFails(t *testing.T) {
	db := newTestDB(t)
	roles, err := NewRoleService(db)
	require.NoError(t, err)
	svc, err := NewRegistrationService(db, roles)
	require.NoError(t, err)

	ident := models.Identity{Email: "stranger@example.org"}
	require.NoError(t, db.Create(&ident).Error)

	_, err = svc.Complete(context.Background(), identity.Session{
		IdentityID: ident.ID,
		Email:      "stranger@example.org",
	})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusNotFound, appErr.StatusCode)
	require.Equal(t, "INVITATION_NOT_FOUND", appErr.Code)
}

func TestCompleteRepairsLeftoverInvitation(t *testing.T) {
	db := newTestDB(t)
	roles, err := NewRoleService(db)
	require.NoError(t, err)
	svc, err := NewRegistrationService(db, roles)
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.Invitation{
		Email:      "new@example.org",
		FullName:   "New Member",
		PublicRole: models.PublicRoleAdvisor,
	}).Error)
	ident := models.Identity{Email: "new@example.org"}
	require.NoError(t, db.Create(&ident).Error)

	ctx := context.Background()
	sess := identity.Session{IdentityID: ident.ID, Email: "new@example.org"}

	_, err = svc.Complete(ctx, sess)
	require.NoError(t, err)

	// Simulate a crash that completed the profile but left the invitation.
	require.NoError(t, db.Create(&models.Invitation{
		Email:      "new@example.org",
		FullName:   "Stale Row",
		PublicRole: models.PublicRoleAdvisor,
	}).Error)

	_, err = svc.Complete(ctx, sess)
	require.NoError(t, err)

	var remaining int64
	require.NoError(t, db.Model(&models.Invitation{}).Count(&remaining).Error)
	require.Zero(t, remaining)
}

func TestCompletePreservesOwnerContactVisibility(t *testing.T) {
	db := newTestDB(t)
	roles, err := NewRoleService(db)
	require.NoError(t, err)
	svc, err := NewRegistrationService(db, roles)
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.Invitation{
		Email:      "new@example.org",
		FullName:   "New Member",
		PublicRole: models.PublicRoleAdvisor,
	}).Error)
	ident := models.Identity{Email: "new@example.org"}
	require.NoError(t, db.Create(&ident).Error)

	ctx := context.Background()
	sess := identity.Session{IdentityID: ident.ID, Email: "new@example.org"}

	_, err = svc.Complete(ctx, sess)
	require.NoError(t, err)

	// The owner hides their contact details, then a stale invitation replays.
	require.NoError(t, db.Model(&models.Profile{}).
		Where("id = ?", ident.ID).
		Update("contact_visibility", false).Error)
	require.NoError(t, db.Create(&models.Invitation{
		Email:      "new@example.org",
		FullName:   "New Member",
		PublicRole: models.PublicRoleAdvisor,
	}).Error)

	_, err = svc.Complete(ctx, sess)
	require.NoError(t, err)

	var profile models.Profile
	require.NoError(t, db.First(&profile, "id = ?", ident.ID).Error)
	require.False(t, profile.ContactVisibility)
}
