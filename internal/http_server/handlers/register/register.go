package register

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
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
}

func (req *Request) Normalize() {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
}

type Response struct {
	resp.Response
	Message string            `json:"message"`
	User    models.PublicUser `json:"user"`
	Token   string            `json:"token"`
}

type Registrar interface {
	Register(ctx context.Context, name, email, password string) (auth.Session, error)
}

// New godoc
// @Summary      Register a user
// @Description  Creates an account with an unverified email and returns a session token.
// @Description  A taken email is reported with the same generic message as any other failure.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      201  {object}  Response
// @Failure      400  {object}  resp.Response
// @Failure      429  {object}  resp.Response
// @Router       /auth/register [post]
func New(log *slog.Logger, validate *validator.Validate, registrar Registrar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.register.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if !request.Bind(w, r, log, validate, &req) {
			return
		}

		session, err := registrar.Register(r.Context(), req.Name, req.Email, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrRegistrationFailed) {
				resp.Write(w, r, http.StatusBadRequest, resp.Error(auth.MsgRegistrationFailed))

				return
			}

			log.Error("failed to register user", sl.Err(err))

			resp.Internal(w, r, err)

			return
		}

		log.Info("User registered", slog.String("id", session.User.ID))

		resp.Write(w, r, http.StatusCreated, Response{
			Response: resp.OK(),
			Message:  "User registered successfully",
			User:     session.User,
			Token:    session.Token,
		})
	}
}
