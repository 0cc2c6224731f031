package me

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"credentials_service/internal/auth"
	"credentials_service/internal/http_server/middleware/session"
	resp "credentials_service/internal/lib/api/response"
	sl "credentials_service/internal/lib/logger"
	"credentials_service/internal/models"

	"github.com/go-chi/chi/middleware"
)

type Response struct {
	resp.Response
	User models.PublicUser `json:"user"`
}

type UserProvider interface {
	UserByID(ctx context.Context, id string) (models.PublicUser, error)
}

// New serves the caller's own profile. It must sit behind the session gate.
func New(log *slog.Logger, users UserProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.me.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		claims, ok := session.ClaimsFromContext(r.Context())
		if !ok || claims.UserID == "" {
			resp.Write(w, r, http.StatusUnauthorized, resp.Error("User not authenticated"))

			return
		}

		user, err := users.UserByID(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				log.Info("token for missing user", slog.String("uid", claims.UserID))

				resp.Write(w, r, http.StatusNotFound, resp.Error("User not found"))

				return
			}

			log.Error("failed to fetch user", sl.Err(err))

			resp.Internal(w, r, err)

			return
		}

		resp.Write(w, r, http.StatusOK, Response{
			Response: resp.OK(),
			User:     user,
		})
	}
}
