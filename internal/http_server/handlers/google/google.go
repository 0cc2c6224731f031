package google

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"credentials_service/internal/auth"
	resp "credentials_service/internal/lib/api/response"
	sl "credentials_service/internal/lib/logger"
	oauthgoogle "credentials_service/internal/oauth/google"

	"github.com/go-chi/chi/middleware"
)

const (
	stateCookie = "oauth_state"
	stateMaxAge = 600
)

type Provider interface {
	AuthCodeURL(state string) string
	Profile(ctx context.Context, code string) (oauthgoogle.Profile, error)
}

type OAuthSignIn interface {
	FindOrCreateOAuthUser(ctx context.Context, googleID, email, name string) (auth.Session, error)
}

// Start sends the browser to Google with a fresh state bound to a cookie.
func Start(log *slog.Logger, provider Provider, secureCookie bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.google.Start"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		state, err := newState()
		if err != nil {
			log.Error("failed to generate oauth state", sl.Err(err))

			resp.Internal(w, r, err)

			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     stateCookie,
			Value:    state,
			Path:     "/auth/google",
			MaxAge:   stateMaxAge,
			HttpOnly: true,
			Secure:   secureCookie,
			SameSite: http.SameSiteLaxMode,
		})

		http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusFound)
	}
}

// Callback finishes the flow and hands the session token to the frontend.
// Every failure lands on the frontend login page with the same error.
func Callback(log *slog.Logger, provider Provider, signIn OAuthSignIn, frontendURL string) http.HandlerFunc {
	frontendURL = strings.TrimRight(frontendURL, "/")
	failure := frontendURL + "/login?error=google_auth_failed"

	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.google.Callback"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		http.SetCookie(w, &http.Cookie{
			Name:     stateCookie,
			Value:    "",
			Path:     "/auth/google",
			MaxAge:   -1,
			HttpOnly: true,
		})

		q := r.URL.Query()

		if e := q.Get("error"); e != "" {
			log.Info("google denied authorization", slog.String("error", e))
			http.Redirect(w, r, failure, http.StatusFound)
			return
		}

		cookie, err := r.Cookie(stateCookie)
		if err != nil || !sameState(cookie.Value, q.Get("state")) {
			log.Warn("oauth state mismatch")
			http.Redirect(w, r, failure, http.StatusFound)
			return
		}

		profile, err := provider.Profile(r.Context(), q.Get("code"))
		if err != nil {
			log.Warn("failed to fetch google profile", sl.Err(err))
			http.Redirect(w, r, failure, http.StatusFound)
			return
		}

		if !profile.EmailVerified {
			log.Warn("google email is not verified", slog.String("google_id", profile.ID))
			http.Redirect(w, r, failure, http.StatusFound)
			return
		}

		session, err := signIn.FindOrCreateOAuthUser(r.Context(), profile.ID, profile.Email, profile.Name)
		if err != nil {
			log.Error("failed to sign in google user", sl.Err(err))
			http.Redirect(w, r, failure, http.StatusFound)
			return
		}

		log.Info("google sign in", slog.String("uid", session.User.ID))

		http.Redirect(w, r, frontendURL+"/auth/callback?token="+url.QueryEscape(session.Token), http.StatusFound)
	}
}

// NotConfigured answers both routes when no client credentials are set.
func NotConfigured() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.Write(w, r, http.StatusNotImplemented, resp.ErrorCode("Google OAuth is not configured", "NOT_CONFIGURED"))
	}
}

func newState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf), nil
}

func sameState(cookie, query string) bool {
	if cookie == "" || query == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(cookie), []byte(query)) == 1
}
