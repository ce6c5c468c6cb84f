package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/account-auth/internal/logging"
	"github.com/iliyamo/account-auth/internal/mail"
)

// errMalformed marks a message that can never be delivered.
var errMalformed = errors.New("malformed activation message")

// Consumer turns ActivationRequested messages into activation emails.
type Consumer struct {
	url         string
	mailer      mail.Mailer
	log         logging.Logger
	sendTimeout time.Duration
	retryDelay  time.Duration
}

func NewConsumer(url string, mailer mail.Mailer, log logging.Logger) *Consumer {
	return &Consumer{
		url:         url,
		mailer:      mailer,
		log:         log.With("component", "activation-consumer"),
		sendTimeout: 30 * time.Second,
		retryDelay:  time.Second,
	}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled, redialling
// with exponential backoff (capped at 30s) whenever the connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn(ctx, "dial broker failed", "err", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn(ctx, "consume loop ended; reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		c.log.Warn(ctx, "set QoS failed", "err", err)
	}
	if _, err := ch.QueueDeclare(ActivationQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(ActivationQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.Info(ctx, "consuming", "queue", ActivationQueue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.process(ctx, d)
		}
	}
}

// process acks delivered mail, drops malformed messages and rejected
// recipients, and requeues transient failures after a short pause.
func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
	err := c.handleMessage(ctx, d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, errMalformed):
		c.log.Error(ctx, "dropping activation message", "err", err)
		_ = d.Nack(false, false)
	case mail.Permanent(err):
		c.log.Error(ctx, "activation mail rejected; dropping", "err", err)
		_ = d.Nack(false, false)
	default:
		c.log.Warn(ctx, "activation mail failed; requeueing", "err", err)
		sleep(ctx, c.retryDelay)
		_ = d.Nack(false, true)
	}
}

func (c *Consumer) handleMessage(ctx context.Context, body []byte) error {
	var ev ActivationRequested
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if ev.Email == "" || ev.Code == "" {
		return fmt.Errorf("%w: missing email or code", errMalformed)
	}

	ctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()
	if err := c.mailer.Send(ctx, mail.ActivationMessage(ev.Email, ev.Code, ev.Link, ev.ExpiresAt)); err != nil {
		return err
	}
	c.log.Info(ctx, "activation mail sent", "email", ev.Email)
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
