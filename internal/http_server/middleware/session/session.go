// Package session guards routes that need a signed-in caller. It trusts the
// token alone and never looks the user up.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	resp "credentials_service/internal/lib/api/response"
	"credentials_service/internal/lib/jwt"
	sl "credentials_service/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
)

const bearerPrefix = "Bearer "

const (
	CodeNoToken                = "NO_TOKEN"
	CodeInvalidTokenFormat     = "INVALID_TOKEN_FORMAT"
	CodeTokenExpired           = "TOKEN_EXPIRED"
	CodeInvalidToken           = "INVALID_TOKEN"
	CodeTokenVerificationError = "TOKEN_VERIFICATION_ERROR"
)

type TokenVerifier interface {
	Parse(token string) (jwt.Claims, error)
}

type claimsKey struct{}

func New(log *slog.Logger, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.session"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				resp.Write(w, r, http.StatusUnauthorized,
					resp.ErrorCode("No token provided. Please authenticate.", CodeNoToken))
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
			if token == "" {
				resp.Write(w, r, http.StatusUnauthorized,
					resp.ErrorCode("Invalid token format. Please authenticate again.", CodeInvalidTokenFormat))
				return
			}

			claims, err := verifier.Parse(token)
			if err != nil {
				msg, code := describe(err)
				if code == CodeTokenVerificationError {
					log.Error("token verification failed", sl.Err(err))
				} else {
					log.Debug("rejected token", slog.String("code", code))
				}

				resp.Write(w, r, http.StatusUnauthorized, resp.ErrorCode(msg, code))
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		}

		return http.HandlerFunc(fn)
	}
}

// ClaimsFromContext returns the claims attached by the gate.
func ClaimsFromContext(ctx context.Context) (jwt.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(jwt.Claims)
	return claims, ok
}

func describe(err error) (string, string) {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "Token expired", CodeTokenExpired
	case errors.Is(err, jwt.ErrInvalidToken):
		return "Invalid token", CodeInvalidToken
	default:
		return "Token verification failed", CodeTokenVerificationError
	}
}
