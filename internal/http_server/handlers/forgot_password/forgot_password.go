package forgotPassword

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"credentials_service/internal/auth"
	"credentials_service/internal/lib/api/request"
	resp "credentials_service/internal/lib/api/response"
	sl "credentials_service/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Email string `json:"email" validate:"required,email"`
}

func (req *Request) Normalize() {
	req.Email = strings.TrimSpace(req.Email)
}

type Response struct {
	resp.Response
	Message string `json:"message"`
}

type ResetRequester interface {
	ForgotPassword(ctx context.Context, email string) error
}

// New answers the same way whether or not the account exists.
func New(log *slog.Logger, validate *validator.Validate, requester ResetRequester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.forgotPassword.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if !request.Bind(w, r, log, validate, &req) {
			return
		}

		if err := requester.ForgotPassword(r.Context(), req.Email); err != nil {
			log.Error("failed to process reset request", sl.Err(err))

			resp.Internal(w, r, err)

			return
		}

		resp.Write(w, r, http.StatusOK, Response{
			Response: resp.OK(),
			Message:  auth.MsgResetRequested,
		})
	}
}
