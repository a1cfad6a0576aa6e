package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ngtsab/memberdir/internal/models"
	"github.com/ngtsab/memberdir/pkg/crypto"
	"github.com/ngtsab/memberdir/pkg/logger"
	"github.com/ngtsab/memberdir/pkg/mail"
)

const (
	defaultInviteExpiry     = 72 * time.Hour
	defaultInviteTokenBytes = 48
	minPasswordLength       = 8
)

var (
	// ErrInviteTokenNotFound indicates no identity matches the provided invite token.
	ErrInviteTokenNotFound = errors.New("identity: invite token not found")
	// ErrInviteTokenExpired indicates the invite link is no longer redeemable.
	ErrInviteTokenExpired = errors.New("identity: invite token expired")
	// ErrInvalidCredentials signals a failed email/password login.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	// ErrPasswordTooShort rejects passwords below the minimum length.
	ErrPasswordTooShort = errors.New("identity: password below minimum length")
	// ErrIdentityNotFound indicates the requested identity does not exist.
	ErrIdentityNotFound = errors.New("identity: not found")
)

// Session describes an established identity session with a verified email.
type Session struct {
	IdentityID string
	Email      string
}

// Option customises Provider behaviour.
type Option func(*Provider)

// WithBaseURL configures the base URL used to build invite redirect links.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(url, "/")
	}
}

// WithInviteExpiry overrides the invite link lifetime.
func WithInviteExpiry(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.inviteExpiry = d
		}
	}
}

// WithTokenSize adjusts the random invite token length in bytes.
func WithTokenSize(size int) Option {
	return func(p *Provider) {
		if size > 0 {
			p.tokenLength = size
		}
	}
}

// WithClock injects a custom clock primarily for testing.
func WithClock(clock func() time.Time) Option {
	return func(p *Provider) {
		if clock != nil {
			p.now = clock
		}
	}
}

// Provider is the local implementation of the identity platform contract:
// it creates identities, dispatches invite emails carrying a redirect link,
// establishes sessions, and accepts password-set requests for the current
// session.
type Provider struct {
	db           *gorm.DB
	mailer       mail.Mailer
	jwt          *JWTService
	baseURL      string
	inviteExpiry time.Duration
	tokenLength  int
	now          func() time.Time
	log          *zap.Logger
}

// NewProvider constructs a Provider with the supplied dependencies.
func NewProvider(db *gorm.DB, mailer mail.Mailer, jwt *JWTService, opts ...Option) (*Provider, error) {
	if db == nil {
		return nil, errors.New("identity provider: db is required")
	}
	if jwt == nil {
		return nil, errors.New("identity provider: jwt service is required")
	}

	provider := &Provider{
		db:           db,
		mailer:       mailer,
		jwt:          jwt,
		inviteExpiry: defaultInviteExpiry,
		tokenLength:  defaultInviteTokenBytes,
		now:          time.Now,
		log:          logger.WithModule("identity"),
	}

	for _, opt := range opts {
		opt(provider)
	}

	return provider, nil
}

// DispatchInvite ensures an identity exists for the email and sends an
// invite email with a single-use redirect link. Calling it again for the
// same email rotates the link and sends a fresh email.
func (p *Provider) DispatchInvite(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return errors.New("identity provider: email is required")
	}

	rawToken, err := crypto.GenerateToken(p.tokenLength)
	if err != nil {
		return fmt.Errorf("identity provider: generate token: %w", err)
	}

	now := p.now()
	expires := now.Add(p.inviteExpiry)
	tokenHash := crypto.HashToken(rawToken)

	var ident models.Identity
	err = p.db.WithContext(ctx).Where("email = ?", email).First(&ident).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		ident = models.Identity{
			Email:                email,
			InviteTokenHash:      &tokenHash,
			InviteTokenExpiresAt: &expires,
		}
		if err := p.db.WithContext(ctx).Create(&ident).Error; err != nil {
			return fmt.Errorf("identity provider: create identity: %w", err)
		}
	case err != nil:
		return fmt.Errorf("identity provider: find identity: %w", err)
	default:
		updates := map[string]any{
			"invite_token_hash":       tokenHash,
			"invite_token_expires_at": expires,
		}
		if err := p.db.WithContext(ctx).Model(&ident).Updates(updates).Error; err != nil {
			return fmt.Errorf("identity provider: rotate invite token: %w", err)
		}
	}

	if p.mailer == nil {
		return nil
	}

	message := mail.Message{
		To:      []string{email},
		Subject: "You're invited to the member directory",
		Body:    p.inviteBody(p.inviteLink(rawToken)),
	}
	if mailErr := p.mailer.Send(ctx, message); mailErr != nil {
		if errors.Is(mailErr, mail.ErrSMTPDisabled) {
			p.log.Warn("invite email skipped, smtp disabled", zap.String("email", email))
			return nil
		}
		return fmt.Errorf("identity provider: send invite email: %w", mailErr)
	}

	return nil
}

// RedeemInviteToken exchanges an invite link token for an established
// session, marking the identity's email as verified and retiring the link.
func (p *Provider) RedeemInviteToken(ctx context.Context, token string) (*Session, string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, "", ErrInviteTokenNotFound
	}

	var ident models.Identity
	err := p.db.WithContext(ctx).
		Where("invite_token_hash = ?", crypto.HashToken(token)).
		First(&ident).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrInviteTokenNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("identity provider: find invite token: %w", err)
	}

	now := p.now()
	if ident.InviteTokenExpiresAt == nil || ident.InviteTokenExpiresAt.Before(now) {
		return nil, "", ErrInviteTokenExpired
	}

	updates := map[string]any{
		"email_verified_at":       now,
		"invite_token_hash":       nil,
		"invite_token_expires_at": nil,
	}
	if err := p.db.WithContext(ctx).Model(&ident).Updates(updates).Error; err != nil {
		return nil, "", fmt.Errorf("identity provider: mark verified: %w", err)
	}

	return p.establishSession(ident)
}

// Login authenticates an email/password pair and establishes a session.
// Failures are indistinguishable to the caller so email existence never leaks.
func (p *Provider) Login(ctx context.Context, email, password string) (*Session, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", ErrInvalidCredentials
	}

	var ident models.Identity
	err := p.db.WithContext(ctx).Where("email = ?", email).First(&ident).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("identity provider: find identity: %w", err)
	}

	if ident.PasswordHash == "" || !crypto.VerifyPassword(ident.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}

	now := p.now()
	if err := p.db.WithContext(ctx).Model(&ident).Update("last_login_at", now).Error; err != nil {
		p.log.Warn("record last login failed", zap.Error(err))
	}

	return p.establishSession(ident)
}

// SessionFromToken validates an access token and returns the session it carries.
func (p *Provider) SessionFromToken(tokenString string) (*Session, error) {
	return p.jwt.ValidateAccessToken(tokenString)
}

// SetPassword stores a new password for the session's identity.
func (p *Provider) SetPassword(ctx context.Context, sess Session, password string) error {
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}

	hashed, err := crypto.HashPassword(password)
	if err != nil {
		return fmt.Errorf("identity provider: hash password: %w", err)
	}

	result := p.db.WithContext(ctx).Model(&models.Identity{}).
		Where("id = ?", sess.IdentityID).
		Update("password_hash", hashed)
	if result.Error != nil {
		return fmt.Errorf("identity provider: set password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrIdentityNotFound
	}

	return nil
}

// RemoveIdentity deletes an identity row. Used when an admin removes a
// member from the directory.
func (p *Provider) RemoveIdentity(ctx context.Context, identityID string) error {
	result := p.db.WithContext(ctx).Delete(&models.Identity{}, "id = ?", identityID)
	if result.Error != nil {
		return fmt.Errorf("identity provider: remove identity: %w", result.Error)
	}
	return nil
}

func (p *Provider) establishSession(ident models.Identity) (*Session, string, error) {
	sess := Session{IdentityID: ident.ID, Email: ident.Email}
	token, err := p.jwt.GenerateAccessToken(sess)
	if err != nil {
		return nil, "", err
	}
	return &sess, token, nil
}

func (p *Provider) inviteLink(token string) string {
	if p.baseURL == "" {
		return token
	}
	return fmt.Sprintf("%s/set-password?token=%s", p.baseURL, token)
}

func (p *Provider) inviteBody(link string) string {
	return fmt.Sprintf("Hello,\n\nYou have been invited to join the member directory. Use the following link to set your password and complete your registration:\n%s\n\nIf you did not expect this email, you can ignore it.\n", link)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
