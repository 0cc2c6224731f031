// Package recoverer turns panics into the JSON error shape and makes sure
// every response carries the request id.
package recoverer

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	resp "credentials_service/internal/lib/api/response"

	"github.com/go-chi/chi/middleware"
)

// RequestID must run after chi's RequestID. It copies the id to the response
// and marks the request context for debug error bodies.
func RequestID(debugErrors bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			if id := middleware.GetReqID(r.Context()); id != "" {
				w.Header().Set(middleware.RequestIDHeader, id)
			}

			next.ServeHTTP(w, r.WithContext(resp.WithDebug(r.Context(), debugErrors)))
		}

		return http.HandlerFunc(fn)
	}
}

// New recovers panics into a 500. Outside prod the body also carries the
// panic value and stack.
func New(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				stack := debug.Stack()

				log.Error("panic recovered",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rvr),
					slog.String("stack", string(stack)),
				)

				body := resp.ErrorCode("Internal server error", "INTERNAL_ERROR")
				if resp.Debug(r.Context()) {
					body.Error = fmt.Sprint(rvr)
					body.Stack = string(stack)
				}

				resp.Write(w, r, http.StatusInternalServerError, body)
			}()

			next.ServeHTTP(w, r)
		}

		return http.HandlerFunc(fn)
	}
}
