package resetPassword

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"credentials_service/internal/auth"
	"credentials_service/internal/lib/api/request"
	resp "credentials_service/internal/lib/api/response"
	sl "credentials_service/internal/lib/logger"
	"credentials_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,password"`
}

type Response struct {
	resp.Response
	Message string            `json:"message"`
	User    models.PublicUser `json:"user"`
	Token   string            `json:"token"`
}

type PasswordResetter interface {
	ResetPassword(ctx context.Context, token, newPassword string) (auth.Session, error)
}

func New(log *slog.Logger, validate *validator.Validate, resetter PasswordResetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resetPassword.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if !request.Bind(w, r, log, validate, &req) {
			return
		}

		session, err := resetter.ResetPassword(r.Context(), req.Token, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidOrExpiredToken) {
				resp.Write(w, r, http.StatusBadRequest,
					resp.ErrorCode(auth.MsgInvalidOrExpiredToken, "INVALID_RESET_TOKEN"))

				return
			}

			log.Error("failed to reset password", sl.Err(err))

			resp.Internal(w, r, err)

			return
		}

		log.Info("Password reset", slog.String("id", session.User.ID))

		resp.Write(w, r, http.StatusOK, Response{
			Response: resp.OK(),
			Message:  "Password reset successful",
			User:     session.User,
			Token:    session.Token,
		})
	}
}
