package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ngtsab/memberdir/internal/access"
	"github.com/ngtsab/memberdir/internal/identity"
	"github.com/ngtsab/memberdir/internal/middleware"
)

const defaultHandlerTimeout = 15 * time.Second

// ViewerResolver resolves the capability roles of an identity into a Viewer.
// The directory service provides the canonical implementation.
type ViewerResolver interface {
	Viewer(ctx context.Context, identityID string) (access.Viewer, error)
}

// requestContext derives a bounded context for downstream service calls.
func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), defaultHandlerTimeout)
}

// currentSession extracts the authenticated session placed by the auth middleware.
func currentSession(c *gin.Context) (identity.Session, bool) {
	value, exists := c.Get(middleware.CtxSessionKey)
	if !exists {
		return identity.Session{}, false
	}

	sess, ok := value.(*identity.Session)
	if !ok || sess == nil {
		return identity.Session{}, false
	}

	return *sess, true
}
