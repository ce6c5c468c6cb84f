// Package mail sends transactional email for the mailer worker.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"strings"
	"time"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers a message. Callers retry failures unless Permanent
// reports them as final.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// ErrInvalidHeader is returned for a message that can never be sent as is.
var ErrInvalidHeader = errors.New("mail: header contains line break")

// Permanent reports whether retrying err cannot succeed: a malformed
// message or a 5xx SMTP reply.
func Permanent(err error) bool {
	if errors.Is(err, ErrInvalidHeader) {
		return true
	}
	var te *textproto.Error
	return errors.As(err, &te) && te.Code >= 500 && te.Code <= 599
}

// ActivationMessage renders the activation email for code. A zero expiresAt
// leaves the expiry line out.
func ActivationMessage(to, code, link string, expiresAt time.Time) Message {
	var b strings.Builder
	b.WriteString("Welcome!\r\n\r\nConfirm your email address to activate your account:\r\n\r\n")
	fmt.Fprintf(&b, "%s\r\n\r\n", link)
	fmt.Fprintf(&b, "If the link does not work, use this activation code: %s\r\n\r\n", code)
	if !expiresAt.IsZero() {
		fmt.Fprintf(&b, "The link expires on %s. ", expiresAt.UTC().Format("2 Jan 2006 15:04 MST"))
	}
	b.WriteString("If you did not sign up, ignore this email.\r\n")
	return Message{To: to, Subject: "Activate your account", Body: b.String()}
}
