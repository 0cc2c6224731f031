package rabbitmq

import (
	"context"
	"log/slog"

	"credentials_service/internal/models"
)

// LogPublisher stands in for the broker when none is configured. Links are
// logged so local flows can be completed by hand.
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, msg models.Message) error {
	p.log.Info("mail queue not configured, message not sent",
		slog.String("purpose", msg.Purpose),
		slog.String("to", msg.Email),
		slog.String("link", msg.Link),
	)

	return nil
}
