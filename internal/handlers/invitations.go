package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ngtsab/memberdir/internal/models"
	"github.com/ngtsab/memberdir/internal/services"
	apperrors "github.com/ngtsab/memberdir/pkg/errors"
	"github.com/ngtsab/memberdir/pkg/logger"
	"github.com/ngtsab/memberdir/pkg/response"
)

// InvitationHandler exposes the invitation registry over HTTP.
type InvitationHandler struct {
	invitations *services.InvitationService
	access      ViewerResolver
	log         *zap.Logger
}

// NewInvitationHandler constructs an InvitationHandler.
func NewInvitationHandler(invitations *services.InvitationService, access ViewerResolver) (*InvitationHandler, error) {
	if invitations == nil {
		return nil, errors.New("invitation handler: invitation service is required")
	}
	if access == nil {
		return nil, errors.New("invitation handler: viewer resolver is required")
	}

	return &InvitationHandler{
		invitations: invitations,
		access:      access,
		log:         logger.WithModule("handlers.invitations"),
	}, nil
}

type createInvitationRequest struct {
	Email      string `json:"email" validate:"required,email"`
	FullName   string `json:"full_name" validate:"required,max=200"`
	PublicRole string `json:"public_role" validate:"required"`

	Phone                     string `json:"phone" validate:"omitempty,max=50"`
	State                     string `json:"state" validate:"omitempty,max=100"`
	Organization              string `json:"organization" validate:"omitempty,max=200"`
	CurrentProjects           string `json:"current_projects" validate:"omitempty,max=2000"`
	DutiesAndResponsibilities string `json:"duties_and_responsibilities" validate:"omitempty,max=2000"`
	Biography                 string `json:"biography" validate:"omitempty,max=5000"`
	Linkedin                  string `json:"linkedin" validate:"omitempty,max=500"`
}

type invitationResponse struct {
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	PublicRole string `json:"public_role"`
	State      string `json:"state,omitempty"`
	InvitedBy  string `json:"invited_by,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func marshalInvitation(inv *models.Invitation) invitationResponse {
	return invitationResponse{
		Email:      inv.Email,
		FullName:   inv.FullName,
		PublicRole: inv.PublicRole,
		State:      inv.State,
		InvitedBy:  inv.InvitedBy,
		CreatedAt:  inv.CreatedAt.Format(time.RFC3339),
	}
}

// Create handles POST /api/invitations.
func (h *InvitationHandler) Create(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	req, ok := bindAndValidate[createInvitationRequest](c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	invitation, err := h.invitations.Invite(ctx, sess.IdentityID, services.InviteInput{
		Email:                     req.Email,
		FullName:                  req.FullName,
		PublicRole:                req.PublicRole,
		Phone:                     req.Phone,
		State:                     req.State,
		Organization:              req.Organization,
		CurrentProjects:           req.CurrentProjects,
		DutiesAndResponsibilities: req.DutiesAndResponsibilities,
		Biography:                 req.Biography,
		Linkedin:                  req.Linkedin,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, marshalInvitation(invitation))
}

type verifyInvitationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Verify handles POST /api/invitations/verify. The response carries only a
// boolean so the public endpoint cannot be mined for invitation details.
func (h *InvitationHandler) Verify(c *gin.Context) {
	req, ok := bindAndValidate[verifyInvitationRequest](c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	exists, err := h.invitations.Exists(ctx, req.Email)
	if err != nil {
		h.log.Error("invitation check failed", zap.Error(err))
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exists": exists})
}

// List handles GET /api/invitations.
func (h *InvitationHandler) List(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	viewer, err := h.access.Viewer(ctx, sess.IdentityID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !viewer.CanInvite() {
		response.Error(c, apperrors.ErrForbidden)
		return
	}

	invitations, err := h.invitations.List(ctx, c.Query("q"))
	if err != nil {
		response.Error(c, err)
		return
	}

	payload := make([]invitationResponse, 0, len(invitations))
	for i := range invitations {
		payload = append(payload, marshalInvitation(&invitations[i]))
	}

	response.Success(c, http.StatusOK, payload)
}

// Revoke handles DELETE /api/invitations/:email. Revoking an absent
// invitation succeeds: the desired end state is identical.
func (h *InvitationHandler) Revoke(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	viewer, err := h.access.Viewer(ctx, sess.IdentityID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !viewer.CanInvite() {
		response.Error(c, apperrors.ErrForbidden)
		return
	}

	if err := h.invitations.Remove(ctx, c.Param("email")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}
