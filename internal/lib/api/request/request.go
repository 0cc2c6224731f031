package request

import (
	"errors"
	"log/slog"
	"net/http"

	resp "credentials_service/internal/lib/api/response"
	sl "credentials_service/internal/lib/logger"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// Normalizer is implemented by request bodies that clean their fields
// before validation.
type Normalizer interface {
	Normalize()
}

// Bind decodes the JSON body into dst and validates it. On failure the 400
// response has already been written and Bind returns false.
func Bind(w http.ResponseWriter, r *http.Request, log *slog.Logger, validate *validator.Validate, dst any) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		log.Info("failed to decode request body", sl.Err(err))

		resp.Write(w, r, http.StatusBadRequest, resp.ErrorCode("Failed to decode request", "INVALID_BODY"))

		return false
	}

	if n, ok := dst.(Normalizer); ok {
		n.Normalize()
	}

	if err := validate.Struct(dst); err != nil {
		var validateErr validator.ValidationErrors
		if !errors.As(err, &validateErr) {
			log.Error("failed to validate request", sl.Err(err))
			resp.Internal(w, r, err)

			return false
		}

		log.Info("invalid request", sl.Err(err))

		resp.Write(w, r, http.StatusBadRequest, resp.ValidationError(validateErr))

		return false
	}

	return true
}
