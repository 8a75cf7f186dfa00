package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gopkg.in/gomail.v2"
)

// TransportError wraps any SMTP/IMAP failure so callers can distinguish
// transport faults from their own logic errors.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mail transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type Sender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string

	// RetryWindow bounds the internal backoff retries of a single send.
	// Zero disables retries.
	RetryWindow time.Duration
}

// Send delivers one plain-text message.
func (s *Sender) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.Host, s.Port, s.User, s.Password)

	if err := d.DialAndSend(m); err != nil {
		return &TransportError{Op: "send", Err: err}
	}

	return nil
}

// SendWithRetry retries transient SMTP failures with exponential backoff
// inside RetryWindow. An error returned from here is treated as permanent by
// the caller.
func (s *Sender) SendWithRetry(ctx context.Context, to, subject, body string) error {
	if s.RetryWindow <= 0 {
		return s.Send(to, subject, body)
	}

	operation := func() error {
		return s.Send(to, subject, body)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = s.RetryWindow

	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}
