package identity

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ngtsab/memberdir/internal/database"
	"github.com/ngtsab/memberdir/internal/models"
	"github.com/ngtsab/memberdir/pkg/mail"
)

type captureMailer struct {
	messages []mail.Message
	err      error
}

func (m *captureMailer) Send(_ context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *captureMailer) lastToken(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, m.messages)

	body := m.messages[len(m.messages)-1].Body
	idx := strings.Index(body, "token=")
	require.GreaterOrEqual(t, idx, 0)

	token := body[idx+len("token="):]
	if end := strings.IndexAny(token, " \n\r"); end >= 0 {
		token = token[:end]
	}
	return token
}

func newProviderFixture(t *testing.T, opts ...Option) (*Provider, *captureMailer, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	jwtService, err := NewJWTService(JWTConfig{Secret: "test-secret", Issuer: "memberdir-test"})
	require.NoError(t, err)

	mailer := &captureMailer{}
	opts = append([]Option{WithBaseURL("https://directory.example.org")}, opts...)
	provider, err := NewProvider(db, mailer, jwtService, opts...)
	require.NoError(t, err)

	return provider, mailer, db
}

func TestDispatchInviteCreatesIdentityAndEmailsLink(t *testing.T) {
	provider, mailer, db := newProviderFixture(t)
	ctx := context.Background()

	require.NoError(t, provider.DispatchInvite(ctx, "New@Example.ORG"))

	var ident models.Identity
	require.NoError(t, db.First(&ident, "email = ?", "new@example.org").Error)
	require.NotNil(t, ident.InviteTokenHash)
	require.NotNil(t, ident.InviteTokenExpiresAt)
	require.Nil(t, ident.EmailVerifiedAt)

	require.Len(t, mailer.messages, 1)
	require.Contains(t, mailer.messages[0].Body, "https://directory.example.org/set-password?token=")

	// The raw token never touches the database.
	token := mailer.lastToken(t)
	require.NotEmpty(t, token)
	require.NotEqual(t, token, *ident.InviteTokenHash)
}

func TestDispatchInviteRotatesToken(t *testing.T) {
	provider, mailer, db := newProviderFixture(t)
	ctx := context.Background()

	require.NoError(t, provider.DispatchInvite(ctx, "new@example.org"))
	firstToken := mailer.lastToken(t)

	require.NoError(t, provider.DispatchInvite(ctx, "new@example.org"))
	secondToken := mailer.lastToken(t)
	require.NotEqual(t, firstToken, secondToken)

	var count int64
	require.NoError(t, db.Model(&models.Identity{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	// The rotated-out link is dead.
	_, _, err := provider.RedeemInviteToken(ctx, firstToken)
	require.ErrorIs(t, err, ErrInviteTokenNotFound)

	_, _, err = provider.RedeemInviteToken(ctx, secondToken)
	require.NoError(t, err)
}

func TestRedeemInviteTokenEstablishesSession(t *testing.T) {
	provider, mailer, db := newProviderFixture(t)
	ctx := context.Background()

	require.NoError(t, provider.DispatchInvite(ctx, "new@example.org"))
	token := mailer.lastToken(t)

	sess, accessToken, err := provider.RedeemInviteToken(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "new@example.org", sess.Email)
	require.NotEmpty(t, accessToken)

	parsed, err := provider.SessionFromToken(accessToken)
	require.NoError(t, err)
	require.Equal(t, sess.IdentityID, parsed.IdentityID)

	var ident models.Identity
	require.NoError(t, db.First(&ident, "id = ?", sess.IdentityID).Error)
	require.NotNil(t, ident.EmailVerifiedAt)
	require.Nil(t, ident.InviteTokenHash)

	// Single use: the same link cannot be redeemed twice.
	_, _, err = provider.RedeemInviteToken(ctx, token)
	require.ErrorIs(t, err, ErrInviteTokenNotFound)
}

func TestRedeemExpiredInviteToken(t *testing.T) {
	clock := time.Now()
	provider, mailer, _ := newProviderFixture(t,
		WithInviteExpiry(time.Hour),
		WithClock(func() time.Time { return clock }),
	)
	ctx := context.Background()

	require.NoError(t, provider.DispatchInvite(ctx, "new@example.org"))
	token := mailer.lastToken(t)

	clock = clock.Add(2 * time.Hour)
	_, _, err := provider.RedeemInviteToken(ctx, token)
	require.ErrorIs(t, err, ErrInviteTokenExpired)
}

func TestSetPasswordAndLogin(t *testing.T) {
	provider, mailer, _ := newProviderFixture(t)
	ctx := context.Background()

	require.NoError(t, provider.DispatchInvite(ctx, "new@example.org"))
	sess, _, err := provider.RedeemInviteToken(ctx, mailer.lastToken(t))
	require.NoError(t, err)

	require.ErrorIs(t, provider.SetPassword(ctx, *sess, "short"), ErrPasswordTooShort)
	require.NoError(t, provider.SetPassword(ctx, *sess, "correct horse battery"))

	loggedIn, token, err := provider.Login(ctx, "new@example.org", "correct horse battery")
	require.NoError(t, err)
	require.Equal(t, sess.IdentityID, loggedIn.IdentityID)
	require.NotEmpty(t, token)

	_, _, err = provider.Login(ctx, "new@example.org", "wrong password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown email fails identically to a wrong password.
	_, _, err = provider.Login(ctx, "ghost@example.org", "whatever")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginWithoutPasswordSet(t *testing.T) {
	provider, _, _ := newProviderFixture(t)
	ctx := context.Background()

	require.NoError(t, provider.DispatchInvite(ctx, "new@example.org"))

	_, _, err := provider.Login(ctx, "new@example.org", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestDispatchInviteToleratesDisabledSMTP(t *testing.T) {
	provider, mailer, db := newProviderFixture(t)
	mailer.err = mail.ErrSMTPDisabled
	ctx := context.Background()

	require.NoError(t, provider.DispatchInvite(ctx, "new@example.org"))

	var count int64
	require.NoError(t, db.Model(&models.Identity{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRemoveIdentity(t *testing.T) {
	provider, mailer, db := newProviderFixture(t)
	ctx := context.Background()

	require.NoError(t, provider.DispatchInvite(ctx, "new@example.org"))
	sess, _, err := provider.RedeemInviteToken(ctx, mailer.lastToken(t))
	require.NoError(t, err)

	require.NoError(t, provider.RemoveIdentity(ctx, sess.IdentityID))

	var count int64
	require.NoError(t, db.Model(&models.Identity{}).Count(&count).Error)
	require.Zero(t, count)

	// Removing an already-removed identity is a no-op.
	require.NoError(t, provider.RemoveIdentity(ctx, sess.IdentityID))
}
