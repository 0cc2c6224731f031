package verify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"credentials_service/internal/auth"
	resp "credentials_service/internal/lib/api/response"
	sl "credentials_service/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
)

type Response struct {
	resp.Response
	Message string `json:"message"`
}

type EmailVerifier interface {
	VerifyEmail(ctx context.Context, token string) error
}

func New(log *slog.Logger, verifier EmailVerifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.verify.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token := r.URL.Query().Get("token")
		if token == "" {
			log.Info("missing verification token")

			resp.Write(w, r, http.StatusBadRequest, resp.ErrorCode("Verification token is required", "VALIDATION_ERROR"))

			return
		}

		if err := verifier.VerifyEmail(r.Context(), token); err != nil {
			if errors.Is(err, auth.ErrInvalidVerificationToken) {
				resp.Write(w, r, http.StatusBadRequest,
					resp.ErrorCode(auth.MsgInvalidVerificationLink, "INVALID_VERIFICATION_TOKEN"))

				return
			}

			log.Error("failed to mark user as verified", sl.Err(err))

			resp.Internal(w, r, err)

			return
		}

		log.Info("email verified successfully")

		resp.Write(w, r, http.StatusOK, Response{
			Response: resp.OK(),
			Message:  "Email verified successfully",
		})
	}
}
