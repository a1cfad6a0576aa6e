package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ngtsab/memberdir/internal/models"
)

type stubRemover struct {
	removed []string
	err     error
}

func (r *stubRemover) RemoveIdentity(_ context.Context, identityID string) error {
	r.removed = append(r.removed, identityID)
	return r.err
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestOwnerCanEditButNotRelabel(t *testing.T) {
	db := newTestDB(t)
	ctl, roles := newAccessController(t, db)
	ownerID := seedMember(t, db, roles, "owner@example.org", models.RoleMember)

	svc, err := NewDirectoryService(db, ctl, &stubRemover{})
	require.NoError(t, err)

	ctx := context.Background()
	viewer, err := svc.Viewer(ctx, ownerID)
	require.NoError(t, err)

	updated, err := svc.Update(ctx, viewer, ownerID, UpdateProfileInput{
		Phone:      strPtr("555-0100"),
		PublicRole: strPtr(models.PublicRolePresident),
	})
	require.NoError(t, err)
	require.Equal(t, "555-0100", updated.Phone)

	// The relabel attempt is dropped, not rejected: the rest of the edit lands.
	require.Equal(t, models.PublicRoleAdvisor, updated.PublicRole)
}

func TestAdminCanRelabelProfile(t *testing.T) {
	db := newTestDB(t)
	ctl, roles := newAccessController(t, db)
	adminID := seedMember(t, db, roles, "admin@example.org", models.RoleAdmin)
	memberID := seedMember(t, db, roles, "member@example.org", models.RoleMember)

	svc, err := NewDirectoryService(db, ctl, &stubRemover{})
	require.NoError(t, err)

	ctx := context.Background()
	admin, err := svc.Viewer(ctx, adminID)
	require.NoError(t, err)

	updated, err := svc.Update(ctx, admin, memberID, UpdateProfileInput{
		PublicRole: strPtr(models.PublicRoleBoardOfDirectors),
	})
	require.NoError(t, err)
	require.Equal(t, models.PublicRoleBoardOfDirectors, updated.PublicRole)

	_, err = svc.Update(ctx, admin, memberID, UpdateProfileInput{
		PublicRole: strPtr("emperor"),
	})
	require.Error(t, err)
}

func TestStrangerCannotEdit(t *testing.T) {
	db := newTestDB(t)
	ctl, roles := newAccessController(t, db)
	memberID := seedMember(t, db, roles, "member@example.org", models.RoleMember)
	strangerID := seedMember(t, db, roles, "stranger@example.org", models.RoleMember)

	svc, err := NewDirectoryService(db, ctl, &stubRemover{})
	require.NoError(t, err)

	ctx := context.Background()
	stranger, err := svc.Viewer(ctx, strangerID)
	require.NoError(t, err)

	_, err = svc.Update(ctx, stranger, memberID, UpdateProfileInput{
		Phone: strPtr("555-0199"),
	})
	require.Error(t, err)
}

func TestContactVisibilityIsOwnerOnly(t *testing.T) {
	db := newTestDB(t)
	ctl, roles := newAccessController(t, db)
	adminID := seedMember(t, db, roles, "admin@example.org", models.RoleAdmin)
	memberID := seedMember(t, db, roles, "member@example.org", models.RoleMember)

	svc, err := NewDirectoryService(db, ctl, &stubRemover{})
	require.NoError(t, err)

	ctx := context.Background()

	admin, err := svc.Viewer(ctx, adminID)
	require.NoError(t, err)
	updated, err := svc.Update(ctx, admin, memberID, UpdateProfileInput{
		ContactVisibility: boolPtr(false),
	})
	require.NoError(t, err)
	require.True(t, updated.ContactVisibility)

	owner, err := svc.Viewer(ctx, memberID)
	require.NoError(t, err)
	updated, err = svc.Update(ctx, owner, memberID, UpdateProfileInput{
		ContactVisibility: boolPtr(false),
	})
	require.NoError(t, err)
	require.False(t, updated.ContactVisibility)
}

func TestDeleteCascades(t *testing.T) {
	db := newTestDB(t)
	ctl, roles := newAccessController(t, db)
	adminID := seedMember(t, db, roles, "admin@example.org", models.RoleAdmin)
	memberID := seedMember(t, db, roles, "member@example.org", models.RoleMember, models.RoleBlogger)

	remover := &stubRemover{}
	svc, err := NewDirectoryService(db, ctl, remover)
	require.NoError(t, err)

	ctx := context.Background()
	admin, err := svc.Viewer(ctx, adminID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, admin, memberID))

	_, err = svc.GetByID(ctx, memberID)
	require.ErrorIs(t, err, ErrProfileNotFound)

	held, err := roles.RolesOf(ctx, memberID)
	require.NoError(t, err)
	require.Empty(t, held)

	require.Equal(t, []string{memberID}, remover.removed)
}

func TestAdminCannotDeleteSelf(t *testing.T) {
	db := newTestDB(t)
	ctl, roles := newAccessController(t, db)
	adminID := seedMember(t, db, roles, "admin@example.org", models.RoleAdmin)

	svc, err := NewDirectoryService(db, ctl, &stubRemover{})
	require.NoError(t, err)

	ctx := context.Background()
	admin, err := svc.Viewer(ctx, adminID)
	require.NoError(t, err)

	require.Error(t, svc.Delete(ctx, admin, adminID))

	_, err = svc.GetByID(ctx, adminID)
	require.NoError(t, err)
}

func TestMemberCannotDelete(t *testing.T) {
	db := newTestDB(t)
	ctl, roles := newAccessController(t, db)
	memberID := seedMember(t, db, roles, "member@example.org", models.RoleMember)
	otherID := seedMember(t, db, roles, "other@example.org", models.RoleMember)

	svc, err := NewDirectoryService(db, ctl, &stubRemover{})
	require.NoError(t, err)

	ctx := context.Background()
	member, err := svc.Viewer(ctx, memberID)
	require.NoError(t, err)

	require.Error(t, svc.Delete(ctx, member, otherID))
}

func TestListFiltersAndPaginates(t *testing.T) {
	db := newTestDB(t)
	ctl, roles := newAccessController(t, db)
	seedMember(t, db, roles, "alice@example.org", models.RoleMember)
	seedMember(t, db, roles, "bob@example.org", models.RoleMember)

	require.NoError(t, db.Model(&models.Profile{}).
		Where("email = ?", "alice@example.org").
		Updates(map[string]any{"full_name": "Alice Austin", "state": "Texas"}).Error)

	svc, err := NewDirectoryService(db, ctl, &stubRemover{})
	require.NoError(t, err)

	ctx := context.Background()

	all, total, err := svc.List(ctx, ListProfilesOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, all, 2)

	byName, total, err := svc.List(ctx, ListProfilesOptions{
		Filters: DirectoryFilters{Query: "austin"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "Alice Austin", byName[0].FullName)

	byState, total, err := svc.List(ctx, ListProfilesOptions{
		Filters: DirectoryFilters{State: "Texas"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, byState, 1)

	paged, total, err := svc.List(ctx, ListProfilesOptions{Page: 2, PageSize: 1})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, paged, 1)
}
