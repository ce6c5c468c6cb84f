// Package service holds the production collaborators the auth service talks
// to outside the process.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/account-auth/internal/logging"
	"github.com/iliyamo/account-auth/internal/queue"
)

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// ActivationPublisher hands activation codes to the mailer worker through
// the durable auth.activation queue. It dials per publish, so a broker
// outage surfaces as a delivery failure instead of a stuck connection.
type ActivationPublisher struct {
	activationURL string
	log           logging.Logger
	open          func(ctx context.Context) (channel, func(), error)
	now           func() time.Time
}

func NewActivationPublisher(amqpURL, activationURL string, log logging.Logger) *ActivationPublisher {
	p := &ActivationPublisher{
		activationURL: activationURL,
		log:           log.With("component", "activation-publisher"),
		now:           time.Now,
	}
	p.open = func(ctx context.Context) (channel, func(), error) {
		return dial(ctx, amqpURL)
	}
	return p
}

func dial(ctx context.Context, amqpURL string) (channel, func(), error) {
	cfg := amqp.Config{Dial: amqp.DefaultDial(5 * time.Second)}
	if dl, ok := ctx.Deadline(); ok {
		cfg.Dial = amqp.DefaultDial(time.Until(dl))
	}
	conn, err := amqp.DialConfig(amqpURL, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	return ch, func() { _ = ch.Close(); _ = conn.Close() }, nil
}

// SendActivation publishes a persistent ActivationRequested message.
func (p *ActivationPublisher) SendActivation(ctx context.Context, email, code string, expiresAt time.Time) error {
	ch, closeFn, err := p.open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queue.ActivationQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: queue declare: %w", err)
	}

	ev := queue.ActivationRequested{
		Email:       email,
		Code:        code,
		Link:        p.link(code),
		ExpiresAt:   expiresAt.UTC(),
		RequestedAt: p.now().UTC(),
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.RequestedAt,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.ActivationQueue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	p.log.Info(ctx, "activation mail queued", "email", email)
	return nil
}

// link appends the code as the token query parameter of the activation URL.
func (p *ActivationPublisher) link(code string) string {
	u, err := url.Parse(p.activationURL)
	if err != nil || p.activationURL == "" {
		return ""
	}
	q := u.Query()
	q.Set("token", code)
	u.RawQuery = q.Encode()
	return u.String()
}
