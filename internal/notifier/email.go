package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// EmailNotifier sends alerts over SMTP with implicit TLS (port 465 style).
type EmailNotifier struct {
	Host     string
	Port     int
	From     string
	Password string
	To       []string

	// Dial replaces the TLS dial when set. Tests point it at a plaintext server.
	Dial mail.DialContextFunc
}

// NewEmailNotifier creates an SMTP notifier.
func NewEmailNotifier(host string, port int, from, password string, to []string) *EmailNotifier {
	return &EmailNotifier{Host: host, Port: port, From: from, Password: password, To: to}
}

func (e *EmailNotifier) Name() string { return "email" }

// Notify sends one plain-text mail to every recipient.
func (e *EmailNotifier) Notify(ctx context.Context, subject, body string) error {
	if e.From == "" || len(e.To) == 0 {
		return fmt.Errorf("%w: email sender or recipients not configured", ErrDelivery)
	}

	msg, err := e.message(subject, body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	client, err := e.client()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	return nil
}

func (e *EmailNotifier) message(subject, body string) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(e.From); err != nil {
		return nil, fmt.Errorf("sender %q: %w", e.From, err)
	}
	if err := m.To(e.To...); err != nil {
		return nil, fmt.Errorf("recipients: %w", err)
	}
	m.Subject(subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, body)
	return m, nil
}

func (e *EmailNotifier) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(e.Port),
		mail.WithSSLPort(false),
		mail.WithTimeout(30 * time.Second),
	}
	if e.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(e.From),
			mail.WithPassword(e.Password),
		)
	}
	if e.Dial != nil {
		opts = append(opts, mail.WithDialContextFunc(e.Dial))
	}
	return mail.NewClient(e.Host, opts...)
}
