package rabbit

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Config describes one exchange/queue pair. Delayed exchanges need the
// rabbitmq_delayed_message_exchange plugin on the broker.
type Config struct {
	URL      string
	Exchange string
	Queue    string
	Delayed  bool
}

type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     Config
	log     *zerolog.Logger
}

type Publisher interface {
	Publish(ctx context.Context, message []byte, delay time.Duration) error
}

type Consumer interface {
	Consume(handler func([]byte) error) error
}

func NewRabbit(cfg Config, log *zerolog.Logger) (*Client, error) {
	if cfg.URL == "" || cfg.Exchange == "" {
		return nil, errors.New("rabbit: url and exchange are required")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	client := &Client{
		conn:    conn,
		channel: ch,
		cfg:     cfg,
		log:     log,
	}
	if err := client.declare(); err != nil {
		client.Close()
		return nil, err
	}

	log.Info().
		Str("exchange", cfg.Exchange).
		Str("queue", cfg.Queue).
		Bool("delayed", cfg.Delayed).
		Msg("RabbitMQ initialized")
	return client, nil
}

func (c *Client) declare() error {
	kind, args := "fanout", amqp.Table(nil)
	if c.cfg.Delayed {
		kind, args = "x-delayed-message", amqp.Table{"x-delayed-type": "direct"}
	}
	if err := c.channel.ExchangeDeclare(
		c.cfg.Exchange,
		kind,
		true,
		false,
		false,
		false,
		args,
	); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", c.cfg.Exchange, err)
	}

	if c.cfg.Queue == "" {
		return nil
	}
	if _, err := c.channel.QueueDeclare(
		c.cfg.Queue,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", c.cfg.Queue, err)
	}
	if err := c.channel.QueueBind(c.cfg.Queue, "", c.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", c.cfg.Queue, err)
	}
	return nil
}

func (c *Client) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.log.Info().Str("exchange", c.cfg.Exchange).Msg("RabbitMQ connection closed")
}

// Publish sends message to the exchange. A positive delay is honoured only by
// delayed exchanges.
func (c *Client) Publish(ctx context.Context, message []byte, delay time.Duration) error {
	headers := amqp.Table{}
	if delay > 0 && c.cfg.Delayed {
		headers["x-delay"] = int32(delay / time.Millisecond)
	}

	err := c.channel.PublishWithContext(ctx,
		c.cfg.Exchange,
		"",
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         message,
			Timestamp:    time.Now(),
			Headers:      headers,
		},
	)
	if err != nil {
		c.log.Error().Err(err).Str("exchange", c.cfg.Exchange).Msg("failed to publish message to RabbitMQ")
		return fmt.Errorf("publish to %s: %w", c.cfg.Exchange, err)
	}
	c.log.Debug().Str("exchange", c.cfg.Exchange).Dur("delay", delay).Msg("message published")
	return nil
}

// Consume delivers queue messages to handler. A handler error nacks the
// message back onto the queue.
func (c *Client) Consume(handler func([]byte) error) error {
	if c.cfg.Queue == "" {
		return errors.New("rabbit: no queue configured to consume from")
	}
	msgs, err := c.channel.Consume(
		c.cfg.Queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", c.cfg.Queue, err)
	}

	go func() {
		for d := range msgs {
			if err := handler(d.Body); err != nil {
				c.log.Warn().Err(err).Str("queue", c.cfg.Queue).Msg("failed to process message")
				_ = d.Nack(false, !d.Redelivered)
				continue
			}
			_ = d.Ack(false)
		}
	}()

	c.log.Info().Str("queue", c.cfg.Queue).Msg("started consuming")
	return nil
}
