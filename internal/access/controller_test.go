package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ngtsab/memberdir/internal/models"
)

type stubRoles struct {
	roles map[string][]string
	err   error
}

func (s *stubRoles) RolesOf(_ context.Context, identityID string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.roles[identityID], nil
}

func newTestController(t *testing.T, roles map[string][]string) *Controller {
	t.Helper()
	ctl, err := NewController(&stubRoles{roles: roles})
	require.NoError(t, err)
	return ctl
}

func TestViewerForResolvesRoles(t *testing.T) {
	ctl := newTestController(t, map[string][]string{
		"alice": {models.RoleAdmin, models.RoleMember},
		"bob":   {models.RoleBlogger, models.RoleMember},
		"carol": {models.RoleMember},
	})

	ctx := context.Background()

	alice, err := ctl.ViewerFor(ctx, "alice")
	require.NoError(t, err)
	require.True(t, alice.IsAdmin)
	require.False(t, alice.IsBlogger)

	bob, err := ctl.ViewerFor(ctx, "bob")
	require.NoError(t, err)
	require.False(t, bob.IsAdmin)
	require.True(t, bob.IsBlogger)

	carol, err := ctl.ViewerFor(ctx, "carol")
	require.NoError(t, err)
	require.False(t, carol.IsAdmin)
	require.False(t, carol.IsBlogger)
}

func TestViewerForPropagatesStoreErrors(t *testing.T) {
	ctl, err := NewController(&stubRoles{err: errors.New("store down")})
	require.NoError(t, err)

	_, err = ctl.ViewerFor(context.Background(), "alice")
	require.Error(t, err)
}

func TestVisibilityMatrix(t *testing.T) {
	public := &models.Profile{ID: "owner", ContactVisibility: true}
	private := &models.Profile{ID: "owner", ContactVisibility: false}

	owner := Viewer{ID: "owner"}
	admin := Viewer{ID: "admin", IsAdmin: true}
	stranger := Viewer{ID: "stranger"}

	cases := []struct {
		name    string
		viewer  Viewer
		profile *models.Profile
		want    Visibility
	}{
		{"owner sees own private profile", owner, private, VisibilityFull},
		{"admin sees private profile", admin, private, VisibilityFull},
		{"stranger restricted on private profile", stranger, private, VisibilityRestricted},
		{"stranger sees public profile", stranger, public, VisibilityFull},
		{"nil profile restricted", stranger, nil, VisibilityRestricted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.viewer.Visibility(tc.profile))
		})
	}
}

func TestCapabilityPredicates(t *testing.T) {
	profile := &models.Profile{ID: "owner"}

	owner := Viewer{ID: "owner"}
	admin := Viewer{ID: "admin", IsAdmin: true}
	blogger := Viewer{ID: "blogger", IsBlogger: true}
	stranger := Viewer{ID: "stranger"}

	require.True(t, owner.CanEdit(profile))
	require.True(t, admin.CanEdit(profile))
	require.False(t, stranger.CanEdit(profile))
	require.False(t, owner.CanEdit(nil))

	require.False(t, owner.CanChangePublicRole())
	require.True(t, admin.CanChangePublicRole())

	require.True(t, admin.CanDelete(profile))
	require.False(t, owner.CanDelete(profile))
	selfProfile := &models.Profile{ID: "admin"}
	require.False(t, admin.CanDelete(selfProfile))

	require.True(t, admin.CanInvite())
	require.False(t, blogger.CanInvite())

	require.True(t, admin.CanAccessContentStudio())
	require.True(t, blogger.CanAccessContentStudio())
	require.False(t, stranger.CanAccessContentStudio())
}
