package rateLimit

import (
	"log/slog"
	"net/http"
	"time"

	"credentials_service/internal/config"
	resp "credentials_service/internal/lib/api/response"
	sl "credentials_service/internal/lib/logger"
	"credentials_service/internal/metrics"

	httprate "github.com/go-chi/httprate"
)

const (
	NameAuth          = "auth"
	NamePasswordReset = "password_reset"
	NameVerification  = "verification"

	CodeRateLimited = "RATE_LIMITED"
)

// CounterFunc supplies a shared counter for a named limiter. Nil keeps the
// counters in process memory.
type CounterFunc func(name string) httprate.LimitCounter

type Limiter struct {
	log      *slog.Logger
	disabled bool
	counters CounterFunc
	metrics  *metrics.Recorder
}

func New(log *slog.Logger, cfg config.RateLimit, counters CounterFunc, recorder *metrics.Recorder) *Limiter {
	return &Limiter{
		log:      log,
		disabled: cfg.Disabled,
		counters: counters,
		metrics:  recorder,
	}
}

// Auth guards register and login.
func (l *Limiter) Auth(limit config.Limit) func(http.Handler) http.Handler {
	return l.limitByIP(NameAuth, "Too many authentication attempts. Please try again later.", limit)
}

// PasswordReset guards forgot-password and reset-password.
func (l *Limiter) PasswordReset(limit config.Limit) func(http.Handler) http.Handler {
	return l.limitByIP(NamePasswordReset, "Too many password reset attempts. Please try again later.", limit)
}

// Verification guards the verify link and the resend endpoint.
func (l *Limiter) Verification(limit config.Limit) func(http.Handler) http.Handler {
	return l.limitByIP(NameVerification, "Too many verification attempts. Please try again later.", limit)
}

func (l *Limiter) limitByIP(name, msg string, limit config.Limit) func(http.Handler) http.Handler {
	if l.disabled {
		return func(next http.Handler) http.Handler { return next }
	}

	opts := []httprate.Option{
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			l.metrics.RateLimited(name)
			resp.Write(w, r, http.StatusTooManyRequests, resp.ErrorCode(msg, CodeRateLimited))
		}),
		// counter errors never get here, failOpen absorbs them
		httprate.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			l.logger().Error("rate limiter failed", slog.String("limiter", name), sl.Err(err))
			resp.Internal(w, r, err)
		}),
	}

	if l.counters != nil {
		if c := l.counters(name); c != nil {
			opts = append(opts, httprate.WithLimitCounter(&failOpen{
				LimitCounter: c,
				log:          l.logger().With(slog.String("limiter", name)),
			}))
		}
	}

	return httprate.Limit(limit.Requests, limit.Window, opts...)
}

func (l *Limiter) logger() *slog.Logger {
	if l.log == nil {
		return sl.NewDiscardLogger()
	}
	return l.log
}

// failOpen lets requests through while the shared counter store is down.
type failOpen struct {
	httprate.LimitCounter
	log *slog.Logger
}

func (f *failOpen) Increment(key string, currentWindow time.Time) error {
	return f.IncrementBy(key, currentWindow, 1)
}

func (f *failOpen) IncrementBy(key string, currentWindow time.Time, amount int) error {
	if err := f.LimitCounter.IncrementBy(key, currentWindow, amount); err != nil {
		f.log.Warn("rate limit counter unavailable, allowing request", sl.Err(err))
	}
	return nil
}

func (f *failOpen) Get(key string, currentWindow, previousWindow time.Time) (int, int, error) {
	curr, prev, err := f.LimitCounter.Get(key, currentWindow, previousWindow)
	if err != nil {
		f.log.Warn("rate limit counter unavailable, allowing request", sl.Err(err))
		return 0, 0, nil
	}
	return curr, prev, nil
}
