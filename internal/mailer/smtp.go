package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"usernotify/pkg/models"

	"github.com/wneessen/go-mail"
)

// SMTPMailer delivers mail via SMTP using the go-mail library.
type SMTPMailer struct {
	config  Config
	timeout time.Duration
	logger  *slog.Logger
}

// NewSMTPMailer creates an SMTPMailer. timeout bounds dial plus send.
func NewSMTPMailer(config Config, timeout time.Duration, logger *slog.Logger) *SMTPMailer {
	return &SMTPMailer{config: config, timeout: timeout, logger: logger.With("component", "mailer")}
}

// Send builds the message and delivers it in a single attempt.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg, err := m.buildMessage(to, subject, body)
	if err != nil {
		return models.MailError("build message", err)
	}

	client, err := mail.NewClient(m.config.Host, m.clientOptions()...)
	if err != nil {
		return models.MailError("create mail client", err)
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return models.MailError("send mail", err)
	}

	m.logger.Info("mail sent", "to", to, "subject", subject)
	return nil
}

func (m *SMTPMailer) buildMessage(to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.config.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if html, err := renderHTML(subject, body); err == nil {
		msg.AddAlternativeString(mail.TypeTextHTML, html)
	}
	return msg, nil
}

func (m *SMTPMailer) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(m.config.Port),
		mail.WithTLSPolicy(tlsPolicyFromEncryption(m.config.Encryption)),
	}
	if m.config.Encryption == "ssl_tls" {
		opts = append(opts, mail.WithSSL())
	}
	if m.config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.config.Username),
			mail.WithPassword(m.config.Password),
		)
	}
	if m.timeout > 0 {
		opts = append(opts, mail.WithTimeout(m.timeout))
	}
	return opts
}

// tlsPolicyFromEncryption converts the encryption string to a go-mail TLSPolicy.
func tlsPolicyFromEncryption(enc string) mail.TLSPolicy {
	switch enc {
	case "ssl_tls":
		return mail.TLSMandatory
	case "starttls":
		return mail.TLSOpportunistic
	default:
		return mail.NoTLS
	}
}
