package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/Krishna180104/cse-leave/internal/apperr"
)

type SMTPOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Mailer отправляет plain-text письма через SMTP.
type Mailer struct {
	client *mail.Client
	from   string
}

func NewMailer(o SMTPOptions) (*Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(o.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if o.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(o.User),
			mail.WithPassword(o.Password),
		)
	}
	c, err := mail.NewClient(o.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	from := o.From
	if from == "" {
		from = o.User
	}
	return &Mailer{client: c, from: from}, nil
}

func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	msg, err := m.message(to, subject, body)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrDelivery, err)
	}
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrDelivery, err)
	}
	return nil
}

func (m *Mailer) message(to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}
