package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"credentials_service/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrClosed = errors.New("delivery channel closed")

type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

func New(urlForConn string, queueName string) (*RabbitMQClient, error) {
	const op = "rabbitmq.New"

	conn, err := amqp.Dial(urlForConn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	q, err := ch.QueueDeclare(
		queueName, true, false, false, false, nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RabbitMQClient{
		conn:    conn,
		channel: ch,
		queue:   q,
	}, nil
}

// Publish puts a persistent mail job on the queue.
func (r *RabbitMQClient) Publish(ctx context.Context, msg models.Message) error {
	const op = "rabbitmq.Publish"

	publishing, err := encode(msg, time.Now())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := r.channel.PublishWithContext(ctx, "", r.queue.Name, false, false, publishing); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Consume hands every delivery to handle until ctx is done. Failed jobs are
// dropped, never requeued: mail is delivered at most once.
func (r *RabbitMQClient) Consume(ctx context.Context, handle func(context.Context, models.Message) error) error {
	const op = "rabbitmq.Consume"

	if err := r.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	deliveries, err := r.channel.ConsumeWithContext(ctx, r.queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%s: %w", op, ErrClosed)
			}

			if err := dispatch(ctx, d, handle); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}
	}
}

// dispatch runs handle for a single delivery and settles it. Only a failure to
// ack or nack is returned; handler errors are reported through the handler.
func dispatch(ctx context.Context, d amqp.Delivery, handle func(context.Context, models.Message) error) error {
	msg, err := decode(d.Body)
	if err != nil {
		return d.Nack(false, false)
	}

	if err := handle(ctx, msg); err != nil {
		return d.Nack(false, false)
	}

	return d.Ack(false)
}

func (r *RabbitMQClient) Close() {
	_ = r.channel.Close()
	_ = r.conn.Close()
}

func encode(msg models.Message, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, err
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
	}, nil
}

func decode(body []byte) (models.Message, error) {
	var msg models.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return models.Message{}, err
	}

	if msg.Email == "" || msg.Purpose == "" {
		return models.Message{}, errors.New("mail job without recipient or purpose")
	}

	return msg, nil
}
