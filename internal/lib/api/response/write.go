package response

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

const msgInternal = "Internal server error"

type debugKey struct{}

// WithDebug marks ctx so internal errors carry their underlying message.
func WithDebug(ctx context.Context, debug bool) context.Context {
	return context.WithValue(ctx, debugKey{}, debug)
}

func Debug(ctx context.Context) bool {
	debug, _ := ctx.Value(debugKey{}).(bool)
	return debug
}

// Write renders body with status. Error responses get the request id.
func Write(w http.ResponseWriter, r *http.Request, status int, body any) {
	if e, ok := body.(Response); ok && e.Status == StatusError && e.RequestID == "" {
		body = e.WithRequestID(middleware.GetReqID(r.Context()))
	}

	render.Status(r, status)
	render.JSON(w, r, body)
}

// Internal answers 500. The cause is only exposed on debug requests.
func Internal(w http.ResponseWriter, r *http.Request, err error) {
	msg := msgInternal
	if err != nil && Debug(r.Context()) {
		msg = err.Error()
	}

	Write(w, r, http.StatusInternalServerError, ErrorCode(msg, "INTERNAL_ERROR"))
}
