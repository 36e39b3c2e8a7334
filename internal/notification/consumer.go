package notification

import (
	"context"
	"log/slog"

	"usernotify/pkg/models"
	"usernotify/pkg/rabbitmq"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventDispatcher is what the consumer hands decoded events to.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event models.LifecycleEvent) (Outcome, error)
}

// Consumer handles lifecycle events delivered by the broker.
type Consumer struct {
	Dispatcher EventDispatcher
	Logger     *slog.Logger
}

// NewConsumer creates a new notification consumer.
func NewConsumer(d EventDispatcher, logger *slog.Logger) *Consumer {
	return &Consumer{Dispatcher: d, Logger: logger.With("component", "listener")}
}

// HandleMessage decodes a delivery and dispatches it. A nil return acks the
// message; a dispatch error leaves it unacked so the broker redelivers it.
func (c *Consumer) HandleMessage(ctx context.Context, delivery amqp.Delivery) error {
	key, _ := delivery.Headers[rabbitmq.HeaderMessageKey].(string)

	event, err := models.Decode(delivery.Body)
	if err != nil {
		c.Logger.Error("failed to decode event",
			"error", err, "key", key, "message_id", delivery.MessageId, "correlation_id", delivery.CorrelationId)
		return err
	}

	c.Logger.Info("message received",
		"key", key,
		"event_id", event.EventID,
		"type", event.EventType,
		"email", event.Email,
		"redelivered", delivery.Redelivered,
		"correlation_id", delivery.CorrelationId,
	)

	_, err = c.Dispatcher.Dispatch(ctx, event)
	return err
}
