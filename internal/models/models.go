package models

import (
	"strconv"
	"strings"
	"time"
)

const (
	PurposeWelcome           = "welcome"
	PurposePasswordReset     = "password_reset"
	PurposeEmailVerification = "email_verification"
)

// User is the persisted identity record. PassHash is only populated by reads
// that explicitly ask for it.
type User struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	PassHash         []byte     `json:"-"`
	GoogleID         string     `json:"-"`
	IsEmailVerified  bool       `json:"is_email_verified"`
	ResetTokenHash   string     `json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// PublicUser is the only user shape that leaves the service.
type PublicUser struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	IsEmailVerified bool   `json:"isEmailVerified"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		IsEmailVerified: u.IsEmailVerified,
	}
}

func (u User) HasPassword() bool {
	return len(u.PassHash) > 0
}

// Message is a mail job handed to the broker. The mail sender renders the
// body from Purpose.
type Message struct {
	Email     string        `json:"to"`
	Name      string        `json:"name,omitempty"`
	Link      string        `json:"link,omitempty"`
	ExpiresIn time.Duration `json:"expires_in,omitempty"`
	Purpose   string        `json:"purpose"`
}

// Expiry describes ExpiresIn for people, e.g. "1 hour" or "30 minutes".
// It is empty when the link does not expire.
func (m Message) Expiry() string {
	d := m.ExpiresIn
	switch {
	case d <= 0:
		return ""
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

// NormalizeEmail lower-cases and trims an address the way it is stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
