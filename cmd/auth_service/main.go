package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"credentials_service/internal/auth"
	"credentials_service/internal/config"
	"credentials_service/internal/http_server/handlers/google"
	"credentials_service/internal/http_server/router"
	"credentials_service/internal/lib/jwt"
	sl "credentials_service/internal/lib/logger"
	"credentials_service/internal/lib/password"
	"credentials_service/internal/lib/resettoken"
	"credentials_service/internal/metrics"
	rateLimit "credentials_service/internal/middleware/ratelimit"
	oauthgoogle "credentials_service/internal/oauth/google"
	"credentials_service/internal/otel"
	"credentials_service/internal/rabbitmq"
	"credentials_service/internal/storage/memory"
	"credentials_service/internal/storage/postgres"
	"credentials_service/internal/storage/redis"

	"github.com/go-chi/httprate"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type store interface {
	auth.UserSaver
	auth.UserProvider
	resettoken.Store
	Ping(ctx context.Context) error
}

type publisher interface {
	auth.Publisher
	Close()
}

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad(config.Path())

	log := sl.Setup(cfg.Env)

	log.Info("starting credentials service", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutdown signal received")
		cancel()
	}()

	shutdownTracing, err := otel.Init(ctx, cfg.OTel.ServiceName, cfg.OTel.Endpoint)
	if err != nil {
		log.Error("failed to init tracing", sl.Err(err))
		os.Exit(1)
	}

	storage, closeStorage, err := setupStorage(ctx, cfg, log)
	if err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}
	defer closeStorage()

	msgBroker, err := setupPublisher(cfg, log)
	if err != nil {
		log.Error("failed to connect rabbitmq", sl.Err(err))
		os.Exit(1)
	}
	defer msgBroker.Close()

	counters, closeCounters := setupCounters(ctx, cfg, log)
	defer closeCounters()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(reg)

	hasher := password.New(cfg.Hashing.BcryptCost)
	tokens := jwt.New(cfg.Tokens.SessionSecret, cfg.Tokens.SessionTTL)

	authService := auth.New(
		log,
		storage,
		storage,
		hasher,
		tokens,
		resettoken.New(storage, hasher, cfg.Tokens.ResetTokenTTL),
		msgBroker,
		recorder,
		auth.Options{
			FrontendURL:        cfg.Frontend.URL,
			PublicURL:          cfg.HTTPServer.PublicURL,
			VerificationSecret: cfg.Tokens.VerificationTokenSecret,
			VerificationTTL:    cfg.Tokens.VerificationTokenTTL,
			NotifyTimeout:      cfg.RabbitMQ.PublishTimeout,
		},
	)

	// * интерфейс должен остаться nil, иначе роутер не поймет что google выключен
	var googleProvider google.Provider
	if cfg.GoogleEnabled() {
		googleProvider = oauthgoogle.New(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CallbackURL)
	} else {
		log.Warn("google oauth is not configured")
	}

	handler := router.New(log, cfg, router.Deps{
		Auth:     authService,
		Tokens:   tokens,
		DB:       storage,
		Google:   googleProvider,
		Limiter:  rateLimit.New(log, cfg.RateLimit, counters, recorder),
		Gatherer: reg,
		Started:  time.Now(),
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", sl.Err(err))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", sl.Err(err))
	} else {
		log.Info("Server stopped gracefully")
	}

	if err := authService.Wait(shutdownCtx); err != nil {
		log.Warn("pending notifications were abandoned", sl.Err(err))
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("failed to flush traces", sl.Err(err))
	}

	log.Info("Main service stopped")
}

func setupStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (store, func(), error) {
	if cfg.Storage.Driver == config.StorageMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		return memory.New(), func() {}, nil
	}

	repo, err := postgres.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, nil, err
	}

	log.Info("postgres is ready", slog.String("host", cfg.Postgres.Host))

	return repo, repo.Close, nil
}

func setupPublisher(cfg *config.Config, log *slog.Logger) (publisher, error) {
	if cfg.RabbitMQ.URL == "" {
		log.Warn("rabbitmq url is not configured, notifications are only logged")
		return logPublisher{rabbitmq.NewLogPublisher(log)}, nil
	}

	client, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		return nil, err
	}

	return client, nil
}

type logPublisher struct {
	*rabbitmq.LogPublisher
}

func (logPublisher) Close() {}

// setupCounters shares rate limit windows through redis when it is
// configured. A redis outage at startup falls back to per-process counters.
func setupCounters(ctx context.Context, cfg *config.Config, log *slog.Logger) (rateLimit.CounterFunc, func()) {
	if cfg.Redis.Addr == "" || cfg.RateLimit.Disabled {
		return nil, func() {}
	}

	client, err := redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn("redis unavailable, using in-memory rate limit counters", sl.Err(err))
		return nil, func() {}
	}

	counters := func(name string) httprate.LimitCounter {
		return client.LimitCounter(name)
	}

	return counters, func() {
		if err := client.Close(); err != nil {
			log.Error("failed to close redis", sl.Err(err))
		}
	}
}
