package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"credentials_service/internal/config"
	sl "credentials_service/internal/lib/logger"
	mailer "credentials_service/internal/mail_sender"
	"credentials_service/internal/models"
	"credentials_service/internal/rabbitmq"

	"github.com/joho/godotenv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg := config.MustLoad(config.Path())
	log := sl.Setup(cfg.Env)

	log.Info("Starting mail_sender", slog.String("env", cfg.Env))

	startConsumer(ctx, cfg, log)
}

func startConsumer(ctx context.Context, cfg *config.Config, log *slog.Logger) {
	if cfg.RabbitMQ.URL == "" {
		log.Error("rabbitmq url is not configured")
		return
	}

	r, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to init rabbitmq", sl.Err(err))
		return
	}
	defer r.Close()

	m := mailer.New(
		cfg.Email.Host,
		cfg.Email.Port,
		cfg.Email.Username,
		cfg.Email.Password,
		cfg.MailFrom(),
	)

	done := make(chan struct{})

	go func() {
		defer close(done)

		err := r.Consume(ctx, func(ctx context.Context, msg models.Message) error {
			log := log.With(slog.String("purpose", msg.Purpose))

			if err := m.Send(ctx, msg); err != nil {
				log.Error("failed to send message", sl.Err(err))
				return err
			}

			log.Info("message sent successfully")
			return nil
		})
		if err != nil {
			log.Error("consumer stopped", sl.Err(err))
		}
	}()

	log.Info("consumer successfully started")

	select {
	case <-ctx.Done():
		log.Info("shutting down consumer...")
		<-done
	case <-done:
		log.Info("consumer finished the work")
	}

	log.Info("service gracefully stopped")
}
