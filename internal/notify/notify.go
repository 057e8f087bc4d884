// Package notify sends the best-effort mail that follows a successful append.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/gea-smc/gea/internal/config"
	"github.com/gea-smc/gea/internal/errors"
	"github.com/gea-smc/gea/internal/logger"
	"github.com/gea-smc/gea/internal/metrics"
	"github.com/gea-smc/gea/internal/record"
)

// Notification outcomes recorded in metrics.
const (
	OutcomeSent     = "sent"
	OutcomeFailed   = "failed"
	OutcomeDisabled = "disabled"
)

// Sender delivers messages. *mail.Client satisfies it.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// ClientFactory builds a Sender for one notification.
type ClientFactory func(cfg config.SMTPConfig) (Sender, error)

// Dispatcher sends notifications to a single configured recipient.
type Dispatcher struct {
	smtp      config.SMTPConfig
	recipient string
	newClient ClientFactory
	log       logger.Logger
	metrics   *metrics.Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClientFactory replaces the SMTP client constructor.
func WithClientFactory(f ClientFactory) Option {
	return func(d *Dispatcher) { d.newClient = f }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithMetrics records notification outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New returns a Dispatcher for cfg's SMTP and notify sections.
func New(cfg *config.Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		smtp:      cfg.SMTP,
		recipient: cfg.Notify.Recipient,
		newClient: NewClient,
		log:       logger.Noop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enabled reports whether both an SMTP host and a recipient are configured.
func (d *Dispatcher) Enabled() bool {
	return d != nil && d.smtp.Host != "" && d.recipient != ""
}

// NewClient builds a go-mail client that requires TLS and authenticates with PLAIN.
func NewClient(cfg config.SMTPConfig) (Sender, error) {
	var opts []mail.Option
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Subject returns the subject line for a category.
func Subject(c record.Category) string {
	return fmt.Sprintf("Nuevo registro de %s capturado", c.Label())
}

// Body returns the plain text body echoing the content and its timestamp.
func Body(c record.Category, content string, at time.Time) string {
	return fmt.Sprintf("Se ha capturado un nuevo %s con el siguiente contenido:\n\n%s\n\nFecha de registro: %s",
		c.Label(), content, at.Format(record.TimestampLayout))
}

// Message builds the notification message.
func (d *Dispatcher) Message(c record.Category, content string, at time.Time) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(d.smtp.From); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrNotify,
			"Invalid sender address "+d.smtp.From,
			"Set smtp.from to a valid address")
	}
	if err := msg.To(d.recipient); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrNotify,
			"Invalid recipient address "+d.recipient,
			"Set notify.recipient to a valid address")
	}
	msg.Subject(Subject(c))
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, Body(c, content, at))
	return msg, nil
}

// Notify mails the recipient about a record appended at time at. A disabled
// dispatcher returns nil without sending. Failures are ErrNotify and are
// never retried.
func (d *Dispatcher) Notify(ctx context.Context, c record.Category, content string, at time.Time) error {
	if !d.Enabled() {
		d.log.Debug("Notifications disabled; skipping")
		d.metrics.RecordNotification(OutcomeDisabled)
		return nil
	}

	err := d.send(ctx, c, content, at)
	if err != nil {
		d.log.Warn("Notification to %s failed: %v", d.recipient, err)
		d.metrics.RecordNotification(OutcomeFailed)
		return err
	}

	d.log.Info("Notified %s", d.recipient)
	d.metrics.RecordNotification(OutcomeSent)
	return nil
}

func (d *Dispatcher) send(ctx context.Context, c record.Category, content string, at time.Time) error {
	msg, err := d.Message(c, content, at)
	if err != nil {
		return err
	}

	client, err := d.newClient(d.smtp)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrNotify,
			"Cannot set up the SMTP client for "+d.smtp.Host,
			"Check the smtp section in gea.yaml")
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.WrapWithCode(err, errors.ErrNotify,
			fmt.Sprintf("Could not send the notification through %s:%d", d.smtp.Host, d.smtp.Port),
			"The record was saved. Check smtp.host, smtp.port and the SMTP credentials")
	}
	return nil
}
