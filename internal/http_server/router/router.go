package router

import (
	"log/slog"
	"net/http"
	"time"

	"credentials_service/internal/auth"
	"credentials_service/internal/config"
	forgotPassword "credentials_service/internal/http_server/handlers/forgot_password"
	"credentials_service/internal/http_server/handlers/google"
	"credentials_service/internal/http_server/handlers/health"
	"credentials_service/internal/http_server/handlers/login"
	"credentials_service/internal/http_server/handlers/me"
	"credentials_service/internal/http_server/handlers/register"
	resendEmail "credentials_service/internal/http_server/handlers/resend_verification_email"
	resetPassword "credentials_service/internal/http_server/handlers/reset_password"
	"credentials_service/internal/http_server/handlers/verify"
	"credentials_service/internal/http_server/middleware/recoverer"
	"credentials_service/internal/http_server/middleware/requestlog"
	"credentials_service/internal/http_server/middleware/session"
	resp "credentials_service/internal/lib/api/response"
	"credentials_service/internal/lib/validation"
	rateLimit "credentials_service/internal/middleware/ratelimit"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Deps are the runtime collaborators the routes are wired to.
type Deps struct {
	Auth     *auth.Auth
	Tokens   session.TokenVerifier
	DB       health.Pinger
	Google   google.Provider
	Limiter  *rateLimit.Limiter
	Gatherer prometheus.Gatherer
	Started  time.Time
}

// New builds the HTTP handler. Google may be nil, in which case its routes
// answer 501.
func New(log *slog.Logger, cfg *config.Config, d Deps) http.Handler {
	validate := validation.New()
	prod := cfg.Env == config.EnvProd

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(recoverer.RequestID(!prod))
	r.Use(requestlog.New(log))
	r.Use(recoverer.New(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           corsMaxAge(prod),
	}))
	if cfg.HTTPServer.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.HTTPServer.RequestTimeout))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		resp.Write(w, r, http.StatusNotFound, resp.ErrorCode("Not Found - "+r.URL.Path, "NOT_FOUND"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		resp.Write(w, r, http.StatusMethodNotAllowed, resp.ErrorCode("Method not allowed", "METHOD_NOT_ALLOWED"))
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{
			"message": "Credentials API",
			"status":  "running",
		})
	})

	healthHandler := health.New(log, d.DB, d.Started)
	r.Get("/health", healthHandler)
	r.Head("/health", healthHandler)

	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	authLimit := d.Limiter.Auth(cfg.RateLimit.Auth)
	resetLimit := d.Limiter.PasswordReset(cfg.RateLimit.PasswordReset)
	verifyLimit := d.Limiter.Verification(cfg.RateLimit.Verification)

	r.Route("/auth", func(r chi.Router) {
		r.With(authLimit).Post("/register", register.New(log, validate, d.Auth))
		r.With(authLimit).Post("/login", login.New(log, validate, d.Auth))

		r.With(resetLimit).Post("/forgot-password", forgotPassword.New(log, validate, d.Auth))
		r.With(resetLimit).Post("/reset-password", resetPassword.New(log, validate, d.Auth))
		r.With(verifyLimit).Get("/verify", verify.New(log, d.Auth))
		r.With(verifyLimit).Post("/verify/resend", resendEmail.New(log, validate, d.Auth))

		r.With(session.New(log, d.Tokens)).Get("/me", me.New(log, d.Auth))

		if d.Google == nil {
			r.Get("/google", google.NotConfigured())
			r.Get("/google/callback", google.NotConfigured())
		} else {
			r.Get("/google", google.Start(log, d.Google, prod))
			r.Get("/google/callback", google.Callback(log, d.Google, d.Auth, cfg.Frontend.URL))
		}
	})

	return otelhttp.NewHandler(r, cfg.OTel.ServiceName)
}

func corsMaxAge(prod bool) int {
	if prod {
		return int((24 * time.Hour).Seconds())
	}
	return 0
}
