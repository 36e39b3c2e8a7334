// Package notification turns user lifecycle events into emails.
package notification

import (
	"context"
	"log/slog"

	"usernotify/internal/mailer"
	"usernotify/pkg/models"
)

// Outcome is the terminal state of dispatching one event.
type Outcome string

const (
	OutcomeSent      Outcome = "sent"
	OutcomeFailed    Outcome = "failed"
	OutcomeDropped   Outcome = "dropped"
	OutcomeDuplicate Outcome = "duplicate"
)

// Template is the subject and body mailed for one event type.
type Template struct {
	Subject string
	Body    string
}

var templates = map[models.EventType]Template{
	models.EventUserCreated: {
		Subject: "Account created",
		Body:    "Hello! Your account has been successfully created.",
	},
	models.EventUserDeleted: {
		Subject: "Account deleted",
		Body:    "Hello! Your account has been deleted.",
	},
}

// TemplateFor returns the notification for t, or false if t is not mapped.
func TemplateFor(t models.EventType) (Template, bool) {
	tpl, ok := templates[t]
	return tpl, ok
}

// Deduper remembers which events have already been mailed.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// Dispatcher maps events to notifications and sends them, regardless of
// whether the event came from the broker or a manual trigger.
type Dispatcher struct {
	mailer  mailer.Mailer
	dedup   Deduper
	logger  *slog.Logger
	metrics *Metrics
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDeduper skips events whose ID was already mailed. Without it every
// delivery, including redeliveries, results in a send.
func WithDeduper(d Deduper) DispatcherOption {
	return func(disp *Dispatcher) { disp.dedup = d }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(disp *Dispatcher) { disp.logger = l }
}

// WithMetrics records dispatch outcomes.
func WithMetrics(m *Metrics) DispatcherOption {
	return func(disp *Dispatcher) { disp.metrics = m }
}

// NewDispatcher creates a Dispatcher that sends through m.
func NewDispatcher(m mailer.Mailer, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{mailer: m, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dispatcher")
	return d
}

// Dispatch sends the notification for event. Unrecognized event types are
// dropped with a warning and no error. A send failure is returned as a
// MailError; nothing is retried here.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.LifecycleEvent) (Outcome, error) {
	log := d.logger.With("event_id", event.EventID, "type", event.EventType, "email", event.Email)

	tpl, ok := TemplateFor(event.EventType)
	if !ok {
		log.Warn("unknown event type, dropping")
		d.metrics.observe(event.EventType, OutcomeDropped)
		return OutcomeDropped, nil
	}

	if d.dedup != nil && event.EventID != "" {
		seen, err := d.dedup.Seen(ctx, event.EventID)
		if err != nil {
			log.Warn("dedup lookup failed, sending anyway", "error", err)
		} else if seen {
			log.Info("event already notified, skipping")
			d.metrics.observe(event.EventType, OutcomeDuplicate)
			return OutcomeDuplicate, nil
		}
	}

	if err := d.Send(ctx, event.Email, tpl.Subject, tpl.Body); err != nil {
		log.Error("notification failed", "error", err)
		d.metrics.observe(event.EventType, OutcomeFailed)
		return OutcomeFailed, err
	}

	if d.dedup != nil && event.EventID != "" {
		if err := d.dedup.Mark(ctx, event.EventID); err != nil {
			log.Warn("failed to record sent event", "error", err)
		}
	}
	log.Info("notification sent", "subject", tpl.Subject)
	d.metrics.observe(event.EventType, OutcomeSent)
	return OutcomeSent, nil
}

// Send performs one send through the mail transport.
func (d *Dispatcher) Send(ctx context.Context, to, subject, body string) error {
	if err := d.mailer.Send(ctx, to, subject, body); err != nil {
		if !models.IsKind(err, models.KindMail) {
			err = models.MailError("send mail", err)
		}
		return err
	}
	return nil
}
