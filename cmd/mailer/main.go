// Command mailer consumes activation requests from RabbitMQ and sends the
// activation emails.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/iliyamo/account-auth/internal/config"
	"github.com/iliyamo/account-auth/internal/logging"
	"github.com/iliyamo/account-auth/internal/mail"
	"github.com/iliyamo/account-auth/internal/queue"
)

func main() {
	cfg, err := config.LoadMailer()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(os.Stdout, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m mail.Mailer
	switch cfg.Mail.Driver {
	case "smtp":
		m = mail.NewSMTPMailer(cfg.Mail.SMTPHost, cfg.Mail.SMTPPort, cfg.Mail.SMTPUser, cfg.Mail.SMTPPass, cfg.Mail.From)
	default:
		m = mail.NewLogMailer(cfg.Mail.LogDir)
	}

	logger.Info(ctx, "mailer starting", "driver", cfg.Mail.Driver, "queue", queue.ActivationQueue)
	if err := queue.NewConsumer(cfg.AMQPURL, m, logger).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}
