package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	from       string
	recipients []string
	data       bytes.Buffer
	quit       bool
	authCalled bool
}

func (c *fakeClient) Mail(from string) error { c.from = from; return nil }
func (c *fakeClient) Rcpt(rcpt string) error { c.recipients = append(c.recipients, rcpt); return nil }
func (c *fakeClient) Data() (io.WriteCloser, error) {
	return nopWriteCloser{&c.data}, nil
}
func (c *fakeClient) Quit() error                     { c.quit = true; return nil }
func (c *fakeClient) Close() error                    { return nil }
func (c *fakeClient) StartTLS(*tls.Config) error      { return nil }
func (c *fakeClient) Auth(smtp.Auth) error            { c.authCalled = true; return nil }
func (c *fakeClient) Extension(string) (bool, string) { return false, "" }

type nopWriteCloser struct{ *bytes.Buffer }

func (nopWriteCloser) Close() error { return nil }

func newFakeMailer(t *testing.T, cfg SMTPSettings) (*smtpMailer, *fakeClient) {
	t.Helper()

	mailer, err := NewSMTPMailer(cfg)
	require.NoError(t, err)

	client := &fakeClient{}
	impl := mailer.(*smtpMailer)
	impl.dialFn = func(context.Context, SMTPSettings) (net.Conn, smtpClient, error) {
		server, _ := net.Pipe()
		return server, client, nil
	}
	return impl, client
}

func TestSendDisabledReturnsSentinel(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{To: []string{"a@example.org"}})
	require.ErrorIs(t, err, ErrSMTPDisabled)
}

func TestEnabledRequiresHostAndPort(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{Enabled: true})
	require.Error(t, err)

	_, err = NewSMTPMailer(SMTPSettings{Enabled: true, Host: "smtp.example.org"})
	require.Error(t, err)
}

func TestSendDeliversFormattedMessage(t *testing.T) {
	mailer, client := newFakeMailer(t, SMTPSettings{
		Enabled:  true,
		Host:     "smtp.example.org",
		Port:     587,
		From:     "noreply@example.org",
		Username: "smtp-user",
	})

	err := mailer.Send(context.Background(), Message{
		To:      []string{"a@example.org", "a@example.org", "b@example.org"},
		Subject: "Welcome",
		Body:    "Hello there.\n",
	})
	require.NoError(t, err)

	require.Equal(t, "noreply@example.org", client.from)
	require.Equal(t, []string{"a@example.org", "b@example.org"}, client.recipients)
	require.True(t, client.authCalled)
	require.True(t, client.quit)

	raw := client.data.String()
	require.Contains(t, raw, "From: noreply@example.org")
	require.Contains(t, raw, "Subject: Welcome")
	require.Contains(t, raw, "Hello there.")
}

func TestSendRejectsInvalidAddresses(t *testing.T) {
	mailer, _ := newFakeMailer(t, SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.org",
		Port:    587,
		From:    "noreply@example.org",
	})

	err := mailer.Send(context.Background(), Message{})
	require.Error(t, err)

	err = mailer.Send(context.Background(), Message{To: []string{"not an address"}})
	require.Error(t, err)

	err = mailer.Send(context.Background(), Message{
		From: "also not an address",
		To:   []string{"a@example.org"},
	})
	require.Error(t, err)
}

func TestHeaderInjectionIsEscaped(t *testing.T) {
	formatted := formatMessage(
		"noreply@example.org",
		[]string{"a@example.org"},
		"Hi\r\nBcc: victim@example.org",
		"body",
	)
	require.Contains(t, formatted, "Subject: Hi Bcc: victim@example.org")
	require.NotContains(t, formatted, "\r\nBcc:")
}
