package access

import (
	"context"
	"errors"

	"github.com/ngtsab/memberdir/internal/models"
	"github.com/ngtsab/memberdir/pkg/metrics"
)

// Visibility describes how much of a profile a viewer may see.
type Visibility string

const (
	// VisibilityFull exposes every profile field including private contact details.
	VisibilityFull Visibility = "full"
	// VisibilityRestricted withholds email and phone.
	VisibilityRestricted Visibility = "restricted"
)

// RoleChecker is the slice of the role store the controller depends on.
type RoleChecker interface {
	RolesOf(ctx context.Context, identityID string) ([]string, error)
}

// Controller centralises every capability and visibility decision so each
// check has exactly one implementation. Handlers resolve a Viewer once per
// request and evaluate the pure predicates against it.
type Controller struct {
	roles RoleChecker
}

// NewController builds a Controller on top of the provided role store.
func NewController(roles RoleChecker) (*Controller, error) {
	if roles == nil {
		return nil, errors.New("access controller: role checker is required")
	}
	return &Controller{roles: roles}, nil
}

// Viewer captures the authenticated caller's identity and capability roles
// for the duration of one request.
type Viewer struct {
	ID        string
	IsAdmin   bool
	IsBlogger bool
}

// ViewerFor resolves the capability roles of the identity into a Viewer.
func (c *Controller) ViewerFor(ctx context.Context, identityID string) (Viewer, error) {
	viewer := Viewer{ID: identityID}

	roles, err := c.roles.RolesOf(ctx, identityID)
	if err != nil {
		return viewer, err
	}

	for _, role := range roles {
		switch role {
		case models.RoleAdmin:
			viewer.IsAdmin = true
		case models.RoleBlogger:
			viewer.IsBlogger = true
		}
	}

	return viewer, nil
}

// Visibility computes what the viewer may see on the profile: full for the
// owner, an admin, or any profile whose contact details are public.
func (v Viewer) Visibility(profile *models.Profile) Visibility {
	if profile == nil {
		return VisibilityRestricted
	}
	if v.ID == profile.ID || v.IsAdmin || profile.ContactVisibility {
		return VisibilityFull
	}
	return VisibilityRestricted
}

// CanEdit reports whether the viewer may mutate the profile.
func (v Viewer) CanEdit(profile *models.Profile) bool {
	allowed := profile != nil && (v.ID == profile.ID || v.IsAdmin)
	record("edit", allowed)
	return allowed
}

// CanChangePublicRole reports whether the viewer may alter the directory
// label. Owners editing themselves may not; only admins may.
func (v Viewer) CanChangePublicRole() bool {
	record("change_public_role", v.IsAdmin)
	return v.IsAdmin
}

// CanDelete reports whether the viewer may remove the member entirely.
// Admins cannot delete themselves through this path.
func (v Viewer) CanDelete(profile *models.Profile) bool {
	allowed := profile != nil && v.IsAdmin && v.ID != profile.ID
	record("delete", allowed)
	return allowed
}

// CanInvite reports whether the viewer may provision new members.
func (v Viewer) CanInvite() bool {
	record("invite", v.IsAdmin)
	return v.IsAdmin
}

// CanAccessContentStudio gates the content-authoring surface.
func (v Viewer) CanAccessContentStudio() bool {
	allowed := v.IsAdmin || v.IsBlogger
	record("content_studio", allowed)
	return allowed
}

func record(capability string, allowed bool) {
	result := "deny"
	if allowed {
		result = "allow"
	}
	metrics.AccessDecisions.WithLabelValues(capability, result).Inc()
}
