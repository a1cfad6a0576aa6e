package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ngtsab/memberdir/internal/identity"
	apperrors "github.com/ngtsab/memberdir/pkg/errors"
	"github.com/ngtsab/memberdir/pkg/logger"
	"github.com/ngtsab/memberdir/pkg/response"
)

var (
	errInviteTokenInvalid = apperrors.New("INVITE_TOKEN_INVALID", "Invitation link is invalid", http.StatusBadRequest)
	errInviteTokenExpired = apperrors.New("INVITE_TOKEN_EXPIRED", "Invitation link has expired", http.StatusGone)
)

// AuthHandler exposes session management endpoints backed by the identity provider.
type AuthHandler struct {
	provider *identity.Provider
	access   ViewerResolver
	log      *zap.Logger
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(provider *identity.Provider, access ViewerResolver) (*AuthHandler, error) {
	if provider == nil {
		return nil, errors.New("auth handler: identity provider is required")
	}

	return &AuthHandler{
		provider: provider,
		access:   access,
		log:      logger.WithModule("handlers.auth"),
	}, nil
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Token      string `json:"token"`
	IdentityID string `json:"identity_id"`
	Email      string `json:"email"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	req, ok := bindAndValidate[loginRequest](c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	sess, token, err := h.provider.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			response.Error(c, apperrors.ErrInvalidCredentials)
			return
		}
		h.log.Error("login failed", zap.Error(err))
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, sessionResponse{
		Token:      token,
		IdentityID: sess.IdentityID,
		Email:      sess.Email,
	})
}

type redeemRequest struct {
	Token string `json:"token" validate:"required"`
}

// Redeem handles POST /api/auth/redeem: exchanging an invite link token for a session.
func (h *AuthHandler) Redeem(c *gin.Context) {
	req, ok := bindAndValidate[redeemRequest](c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	sess, token, err := h.provider.RedeemInviteToken(ctx, req.Token)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInviteTokenNotFound):
			response.Error(c, errInviteTokenInvalid)
		case errors.Is(err, identity.ErrInviteTokenExpired):
			response.Error(c, errInviteTokenExpired)
		default:
			h.log.Error("invite redemption failed", zap.Error(err))
			response.Error(c, err)
		}
		return
	}

	response.Success(c, http.StatusOK, sessionResponse{
		Token:      token,
		IdentityID: sess.IdentityID,
		Email:      sess.Email,
	})
}

type setPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

// SetPassword handles POST /api/auth/password for the authenticated session.
func (h *AuthHandler) SetPassword(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	req, ok := bindAndValidate[setPasswordRequest](c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.provider.SetPassword(ctx, sess, req.Password); err != nil {
		switch {
		case errors.Is(err, identity.ErrPasswordTooShort):
			response.Error(c, apperrors.NewBadRequest("password must be at least 8 characters"))
		case errors.Is(err, identity.ErrIdentityNotFound):
			response.Error(c, apperrors.ErrNotFound)
		default:
			h.log.Error("set password failed", zap.Error(err))
			response.Error(c, err)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": true})
}

// Me handles GET /api/auth/me: the session's identity plus capability roles.
func (h *AuthHandler) Me(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	payload := gin.H{
		"identity_id": sess.IdentityID,
		"email":       sess.Email,
	}

	if h.access != nil {
		viewer, err := h.access.Viewer(ctx, sess.IdentityID)
		if err != nil {
			h.log.Error("resolve viewer failed", zap.Error(err))
			response.Error(c, err)
			return
		}
		payload["is_admin"] = viewer.IsAdmin
		payload["is_blogger"] = viewer.IsBlogger
	}

	response.Success(c, http.StatusOK, payload)
}
