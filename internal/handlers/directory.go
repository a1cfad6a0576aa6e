package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ngtsab/memberdir/internal/access"
	"github.com/ngtsab/memberdir/internal/models"
	"github.com/ngtsab/memberdir/internal/services"
	apperrors "github.com/ngtsab/memberdir/pkg/errors"
	"github.com/ngtsab/memberdir/pkg/logger"
	"github.com/ngtsab/memberdir/pkg/response"
)

// fullVisibility marshals a profile with contact details included, used when
// the caller is rendering their own profile.
const fullVisibility = access.VisibilityFull

// profileResponse is the wire shape of a directory entry. Email and phone are
// omitted entirely under restricted visibility rather than sent empty.
type profileResponse struct {
	ID                        string `json:"id"`
	FullName                  string `json:"full_name"`
	Email                     string `json:"email,omitempty"`
	Phone                     string `json:"phone,omitempty"`
	PublicRole                string `json:"public_role"`
	State                     string `json:"state,omitempty"`
	Organization              string `json:"organization,omitempty"`
	CurrentProjects           string `json:"current_projects,omitempty"`
	DutiesAndResponsibilities string `json:"duties_and_responsibilities,omitempty"`
	Biography                 string `json:"biography,omitempty"`
	Linkedin                  string `json:"linkedin,omitempty"`
	ProfilePhotoURL           string `json:"profile_photo_url,omitempty"`
	ContactVisibility         bool   `json:"contact_visibility"`
	CreatedAt                 string `json:"created_at"`
	UpdatedAt                 string `json:"updated_at"`
}

func marshalProfile(profile *models.Profile, visibility access.Visibility) profileResponse {
	resp := profileResponse{
		ID:                        profile.ID,
		FullName:                  profile.FullName,
		PublicRole:                profile.PublicRole,
		State:                     profile.State,
		Organization:              profile.Organization,
		CurrentProjects:           profile.CurrentProjects,
		DutiesAndResponsibilities: profile.DutiesAndResponsibilities,
		Biography:                 profile.Biography,
		Linkedin:                  profile.Linkedin,
		ProfilePhotoURL:           profile.ProfilePhotoURL,
		ContactVisibility:         profile.ContactVisibility,
		CreatedAt:                 profile.CreatedAt.Format(time.RFC3339),
		UpdatedAt:                 profile.UpdatedAt.Format(time.RFC3339),
	}

	if visibility == access.VisibilityFull {
		resp.Email = profile.Email
		resp.Phone = profile.Phone
	}

	return resp
}

// DirectoryHandler exposes the member directory over HTTP.
type DirectoryHandler struct {
	directory *services.DirectoryService
	roles     *services.RoleService
	log       *zap.Logger
}

// NewDirectoryHandler constructs a DirectoryHandler.
func NewDirectoryHandler(directory *services.DirectoryService, roles *services.RoleService) (*DirectoryHandler, error) {
	if directory == nil {
		return nil, errors.New("directory handler: directory service is required")
	}
	if roles == nil {
		return nil, errors.New("directory handler: role service is required")
	}

	return &DirectoryHandler{
		directory: directory,
		roles:     roles,
		log:       logger.WithModule("handlers.directory"),
	}, nil
}

// List handles GET /api/directory.
func (h *DirectoryHandler) List(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	viewer, err := h.directory.Viewer(ctx, sess.IdentityID)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))

	profiles, total, err := h.directory.List(ctx, services.ListProfilesOptions{
		Page:     page,
		PageSize: perPage,
		Filters: services.DirectoryFilters{
			Query: c.Query("q"),
			State: c.Query("state"),
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	payload := make([]profileResponse, 0, len(profiles))
	for i := range profiles {
		profile := &profiles[i]
		payload = append(payload, marshalProfile(profile, viewer.Visibility(profile)))
	}

	if page <= 0 {
		page = 1
	}
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}
	totalPages := int((total + int64(perPage) - 1) / int64(perPage))

	response.SuccessWithMeta(c, http.StatusOK, payload, &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      int(total),
		TotalPages: totalPages,
	})
}

// Get handles GET /api/directory/:id.
func (h *DirectoryHandler) Get(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	viewer, err := h.directory.Viewer(ctx, sess.IdentityID)
	if err != nil {
		response.Error(c, err)
		return
	}

	profile, err := h.directory.GetByID(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, marshalProfile(profile, viewer.Visibility(profile)))
}

type updateProfileRequest struct {
	FullName                  *string `json:"full_name" validate:"omitempty,min=1,max=200"`
	PublicRole                *string `json:"public_role"`
	Phone                     *string `json:"phone" validate:"omitempty,max=50"`
	State                     *string `json:"state" validate:"omitempty,max=100"`
	Organization              *string `json:"organization" validate:"omitempty,max=200"`
	CurrentProjects           *string `json:"current_projects" validate:"omitempty,max=2000"`
	DutiesAndResponsibilities *string `json:"duties_and_responsibilities" validate:"omitempty,max=2000"`
	Biography                 *string `json:"biography" validate:"omitempty,max=5000"`
	Linkedin                  *string `json:"linkedin" validate:"omitempty,max=500"`
	ContactVisibility         *bool   `json:"contact_visibility"`
	ProfilePhotoURL           *string `json:"profile_photo_url" validate:"omitempty,max=1000"`
}

// Update handles PATCH /api/directory/:id.
func (h *DirectoryHandler) Update(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	req, ok := bindAndValidate[updateProfileRequest](c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	viewer, err := h.directory.Viewer(ctx, sess.IdentityID)
	if err != nil {
		response.Error(c, err)
		return
	}

	profile, err := h.directory.Update(ctx, viewer, c.Param("id"), services.UpdateProfileInput{
		FullName:                  req.FullName,
		PublicRole:                req.PublicRole,
		Phone:                     req.Phone,
		State:                     req.State,
		Organization:              req.Organization,
		CurrentProjects:           req.CurrentProjects,
		DutiesAndResponsibilities: req.DutiesAndResponsibilities,
		Biography:                 req.Biography,
		Linkedin:                  req.Linkedin,
		ContactVisibility:         req.ContactVisibility,
		ProfilePhotoURL:           req.ProfilePhotoURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, marshalProfile(profile, viewer.Visibility(profile)))
}

// Delete handles DELETE /api/directory/:id.
func (h *DirectoryHandler) Delete(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	viewer, err := h.directory.Viewer(ctx, sess.IdentityID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.directory.Delete(ctx, viewer, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

type grantRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin blogger member"`
}

// GrantRole handles POST /api/directory/:id/roles.
func (h *DirectoryHandler) GrantRole(c *gin.Context) {
	viewer, ok := h.requireAdmin(c)
	if !ok {
		return
	}

	req, ok := bindAndValidate[grantRoleRequest](c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	targetID := c.Param("id")
	if err := h.roles.Grant(ctx, targetID, req.Role); err != nil {
		response.Error(c, err)
		return
	}

	h.log.Info("role granted",
		zap.String("identity_id", targetID),
		zap.String("role", req.Role),
		zap.String("granted_by", viewer.ID),
	)

	roles, err := h.roles.RolesOf(ctx, targetID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"roles": roles})
}

// RevokeRole handles DELETE /api/directory/:id/roles/:role.
func (h *DirectoryHandler) RevokeRole(c *gin.Context) {
	viewer, ok := h.requireAdmin(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	targetID := c.Param("id")
	role := c.Param("role")

	// An admin stripping their own admin role would lock the org out when
	// they are the last one; self-revocation of admin is rejected outright.
	if role == models.RoleAdmin && targetID == viewer.ID {
		response.Error(c, apperrors.NewForbidden("Admins cannot revoke their own admin role"))
		return
	}

	if err := h.roles.Revoke(ctx, targetID, role); err != nil {
		response.Error(c, err)
		return
	}

	h.log.Info("role revoked",
		zap.String("identity_id", targetID),
		zap.String("role", role),
		zap.String("revoked_by", viewer.ID),
	)

	roles, err := h.roles.RolesOf(ctx, targetID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"roles": roles})
}

func (h *DirectoryHandler) requireAdmin(c *gin.Context) (access.Viewer, bool) {
	sess, ok := currentSession(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return access.Viewer{}, false
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	viewer, err := h.directory.Viewer(ctx, sess.IdentityID)
	if err != nil {
		response.Error(c, err)
		return access.Viewer{}, false
	}
	if !viewer.IsAdmin {
		response.Error(c, apperrors.ErrForbidden)
		return access.Viewer{}, false
	}

	return viewer, true
}
