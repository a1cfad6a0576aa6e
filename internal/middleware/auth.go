package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ngtsab/memberdir/internal/identity"
	"github.com/ngtsab/memberdir/pkg/errors"
	"github.com/ngtsab/memberdir/pkg/response"
)

const (
	CtxSessionKey    = "identitySession"
	CtxIdentityIDKey = "identityID"
	CtxEmailKey      = "identityEmail"
)

// Auth enforces bearer-token authentication using the supplied JWT service.
func Auth(jwt *identity.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		token := strings.TrimSpace(authz[7:])
		sess, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		// Propagate the session into request context
		c.Set(CtxSessionKey, sess)
		c.Set(CtxIdentityIDKey, sess.IdentityID)
		c.Set(CtxEmailKey, sess.Email)

		c.Next()
	}
}
