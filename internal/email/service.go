// Package email sends couple invites over SMTP.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"net/smtp"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no SMTP server is configured.
var ErrNotConfigured = errors.New("email is not configured")

// ErrInvalidAddress is returned for a malformed recipient.
var ErrInvalidAddress = errors.New("invalid email address")

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s != nil && s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// InviteData fills the invite template.
type InviteData struct {
	AppName   string
	FromName  string
	Code      string
	Token     string
	ExpiresAt time.Time
}

// SendInvite mails the couple code and a signed invite token to one address.
func (s *Service) SendInvite(to string, data InviteData) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	address, err := mail.ParseAddress(strings.TrimSpace(to))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, to)
	}
	if data.AppName == "" {
		data.AppName = "Nosotros"
	}
	html, err := renderInvite(data)
	if err != nil {
		return fmt.Errorf("render invite template: %w", err)
	}
	subject := fmt.Sprintf("%s te invita a %s", fallback(data.FromName, "Tu pareja"), data.AppName)
	return s.sendHTML([]string{address.Address}, subject, inviteText(data), html)
}

func (s *Service) sendHTML(to []string, subject, text, htmlBody string) error {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	boundary := "boundary-nosotros"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", text)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	if err := s.send(s.server, s.auth, s.config.From, to, msg.Bytes()); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func inviteText(data InviteData) string {
	return fmt.Sprintf("Código de pareja: %s\r\nInvitación: %s\r\nVálida hasta %s",
		data.Code, data.Token, data.ExpiresAt.Format("02/01/2006 15:04"))
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

var inviteTmpl = template.Must(template.New("invite").Funcs(template.FuncMap{
	"fecha": func(t time.Time) string { return t.Format("02/01/2006 15:04") },
}).Parse(inviteTemplate))

func renderInvite(data InviteData) (string, error) {
	var buf bytes.Buffer
	if err := inviteTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const inviteTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.AppName}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #e0457b; padding-bottom: 10px; margin-bottom: 20px; }
        .code { display: inline-block; padding: 12px 24px; background: #fde4ec; color: #a0224f; font-size: 28px; letter-spacing: 6px; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .token { word-break: break-all; color: #a0224f; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>{{if .FromName}}{{.FromName}} te invita{{else}}Te invitan{{end}} a compartir {{.AppName}}</h2>

    <p>Abre la app, elige "Unirme" y escribe este código:</p>

    <p class="code">{{.Code}}</p>

    <p>O pega esta invitación:</p>
    <p class="token">{{.Token}}</p>

    <div class="footer">
        <p>La invitación vence el {{fecha .ExpiresAt}}.</p>
    </div>
</body>
</html>`
