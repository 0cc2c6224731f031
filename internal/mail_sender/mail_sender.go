package mailSender

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"

	"credentials_service/internal/models"

	"gopkg.in/gomail.v2"
)

var ErrUnknownPurpose = errors.New("unknown mail purpose")

type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	dialer *gomail.Dialer
}

func New(host string, port int, username, password, from string) *Mailer {
	return &Mailer{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		dialer:   gomail.NewDialer(host, port, username, password),
	}
}

// Send renders msg by its purpose and delivers it over SMTP.
func (m *Mailer) Send(ctx context.Context, msg models.Message) error {
	const op = "mailSender.Send"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	mail, err := m.Compose(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := m.dialer.DialAndSend(mail); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (m *Mailer) Compose(msg models.Message) (*gomail.Message, error) {
	subject, body, err := Render(msg)
	if err != nil {
		return nil, err
	}

	mail := gomail.NewMessage()
	mail.SetHeader("To", msg.Email)
	mail.SetHeader("From", m.From)
	mail.SetHeader("Subject", subject)
	mail.SetBody("text/html", body)

	return mail, nil
}

type letter struct {
	subject string
	body    *template.Template
}

var letters = map[string]letter{
	models.PurposeWelcome: {
		subject: "Welcome to Our App!",
		body: template.Must(template.New(models.PurposeWelcome).Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Welcome, {{.Name}}!</h2>
  <p>Thank you for signing up. We're excited to have you on board!</p>
  {{if .Link}}<p>Please confirm your email address:</p>
  <p><a href="{{.Link}}">Verify email</a></p>
  {{with .Expiry}}<p>The link is valid for {{.}}.</p>{{end}}{{end}}
  <p>If you have any questions, feel free to reach out to our support team.</p>
</div>`)),
	},
	models.PurposePasswordReset: {
		subject: "Password Reset Request",
		body: template.Must(template.New(models.PurposePasswordReset).Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Password Reset Request</h2>
  <p>You requested a password reset. Click the link below to reset your password:</p>
  <p><a href="{{.Link}}">Reset Password</a></p>
  <p>Or copy and paste this link into your browser:</p>
  <p style="word-break: break-all;">{{.Link}}</p>
  {{with .Expiry}}<p>This link will expire in {{.}}.</p>{{end}}
  <p>If you didn't request this, please ignore this email.</p>
</div>`)),
	},
	models.PurposeEmailVerification: {
		subject: "Confirm your email",
		body: template.Must(template.New(models.PurposeEmailVerification).Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Confirm your email</h2>
  <p>Click the link below to verify your email address:</p>
  <p><a href="{{.Link}}">Verify email</a></p>
  <p style="word-break: break-all;">{{.Link}}</p>
  {{with .Expiry}}<p>The link is valid for {{.}}.</p>{{end}}
</div>`)),
	},
}

// Render returns the subject and HTML body for msg.
func Render(msg models.Message) (string, string, error) {
	l, ok := letters[msg.Purpose]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownPurpose, msg.Purpose)
	}

	var buf bytes.Buffer
	if err := l.body.Execute(&buf, msg); err != nil {
		return "", "", err
	}

	return l.subject, buf.String(), nil
}
