package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ngtsab/memberdir/internal/services"
	apperrors "github.com/ngtsab/memberdir/pkg/errors"
	"github.com/ngtsab/memberdir/pkg/response"
)

// RegistrationHandler finalises a redeemed invitation into a directory profile.
type RegistrationHandler struct {
	registration *services.RegistrationService
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(registration *services.RegistrationService) (*RegistrationHandler, error) {
	if registration == nil {
		return nil, errors.New("registration handler: registration service is required")
	}
	return &RegistrationHandler{registration: registration}, nil
}

// Complete handles POST /api/registration/complete for the authenticated
// session. The operation is idempotent: repeating it returns the profile again.
func (h *RegistrationHandler) Complete(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	profile, err := h.registration.Complete(ctx, sess)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, marshalProfile(profile, fullVisibility))
}
