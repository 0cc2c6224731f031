package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sl "credentials_service/internal/lib/logger"

	"github.com/go-chi/render"
)

const pingTimeout = 2 * time.Second

type Response struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime"`
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// New reports readiness: 200 while the store answers pings, 503 otherwise.
// HEAD requests get the status code only.
func New(log *slog.Logger, db Pinger, started time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.health.New"

		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()

		res := Response{
			Status:    "ok",
			Database:  "connected",
			Timestamp: time.Now().UTC(),
			Uptime:    time.Since(started).Seconds(),
		}
		status := http.StatusOK

		if err := db.Ping(ctx); err != nil {
			log.Warn("database ping failed", slog.String("op", op), sl.Err(err))

			res.Status = "degraded"
			res.Database = "disconnected"
			status = http.StatusServiceUnavailable
		}

		if r.Method == http.MethodHead {
			w.WriteHeader(status)
			return
		}

		render.Status(r, status)
		render.JSON(w, r, res)
	}
}
