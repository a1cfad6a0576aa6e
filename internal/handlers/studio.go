package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ngtsab/memberdir/pkg/errors"
	"github.com/ngtsab/memberdir/pkg/response"
)

// StudioHandler gates the content-authoring surface behind the admin or
// blogger capability.
type StudioHandler struct {
	access ViewerResolver
}

// NewStudioHandler constructs a StudioHandler.
func NewStudioHandler(access ViewerResolver) (*StudioHandler, error) {
	if access == nil {
		return nil, errors.New("studio handler: viewer resolver is required")
	}
	return &StudioHandler{access: access}, nil
}

// Enter handles GET /api/studio.
func (h *StudioHandler) Enter(c *gin.Context) {
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
	if !viewer.CanAccessContentStudio() {
		response.Error(c, apperrors.ErrForbidden)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"is_admin":   viewer.IsAdmin,
		"is_blogger": viewer.IsBlogger,
	})
}
