// Package google signs users in with Google's OAuth 2.0 authorization code flow.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

const userInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

var (
	ErrNoEmail          = errors.New("no email found in google profile")
	ErrEmailNotVerified = errors.New("google has not verified the profile email")
)

type Profile struct {
	ID            string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

type Provider struct {
	config      *oauth2.Config
	userInfoURL string
}

func New(clientID, clientSecret, callbackURL string) *Provider {
	return newProvider(&oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  callbackURL,
		Scopes:       []string{"openid", "profile", "email"},
		Endpoint:     googleoauth.Endpoint,
	}, userInfoURL)
}

func newProvider(cfg *oauth2.Config, infoURL string) *Provider {
	return &Provider{config: cfg, userInfoURL: infoURL}
}

// AuthCodeURL is where the browser is sent to consent.
func (p *Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Profile exchanges the authorization code and reads the user's profile.
func (p *Provider) Profile(ctx context.Context, code string) (Profile, error) {
	const op = "google.Profile"

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("%s: exchange: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	res, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("%s: userinfo: %w", op, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("%s: userinfo status %d", op, res.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(res.Body).Decode(&profile); err != nil {
		return Profile{}, fmt.Errorf("%s: decode userinfo: %w", op, err)
	}

	if profile.Email == "" {
		return Profile{}, fmt.Errorf("%s: %w", op, ErrNoEmail)
	}

	// accounts are matched by email, so only a verified address may sign in
	if !profile.EmailVerified {
		return Profile{}, fmt.Errorf("%s: %w", op, ErrEmailNotVerified)
	}

	return profile, nil
}
