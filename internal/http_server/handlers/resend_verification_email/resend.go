package resendEmail

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

type VerificationResender interface {
	ResendVerification(ctx context.Context, email string) error
}

// New godoc
// @Summary      Resend the verification email
// @Description  Always answers 200 so the response never reveals whether an account exists
// @Description  or is already verified. Mail is only sent to unverified accounts.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        email  body  object{email=string}  true  "Account email"
// @Success      200  {object}  Response
// @Failure      400  {object}  resp.Response
// @Failure      500  {object}  resp.Response
// @Router       /auth/verify/resend [post]
func New(log *slog.Logger, validate *validator.Validate, resender VerificationResender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resendVerificationEmail.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if !request.Bind(w, r, log, validate, &req) {
			return
		}

		if err := resender.ResendVerification(r.Context(), req.Email); err != nil {
			log.Error("failed to resend verification email", sl.Err(err))

			resp.Internal(w, r, err)

			return
		}

		resp.Write(w, r, http.StatusOK, Response{
			Response: resp.OK(),
			Message:  auth.MsgVerificationResent,
		})
	}
}
