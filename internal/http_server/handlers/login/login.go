package login

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"credentials_service/internal/auth"
	"credentials_service/internal/lib/api/request"
	resp "credentials_service/internal/lib/api/response"
	sl "credentials_service/internal/lib/logger"
	"credentials_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (req *Request) Normalize() {
	req.Email = strings.TrimSpace(req.Email)
}

type Response struct {
	resp.Response
	Message string            `json:"message"`
	User    models.PublicUser `json:"user"`
	Token   string            `json:"token"`
}

type Authenticator interface {
	Login(ctx context.Context, email, password string) (auth.Session, error)
}

func New(log *slog.Logger, validate *validator.Validate, authenticator Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.login.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if !request.Bind(w, r, log, validate, &req) {
			return
		}

		session, err := authenticator.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				resp.Write(w, r, http.StatusUnauthorized, resp.Error(auth.MsgInvalidCredentials))

				return
			}

			log.Error("failed to login user", sl.Err(err))

			resp.Internal(w, r, err)

			return
		}

		log.Info("User logged in successfully")

		resp.Write(w, r, http.StatusOK, Response{
			Response: resp.OK(),
			Message:  "Login successful",
			User:     session.User,
			Token:    session.Token,
		})
	}
}
