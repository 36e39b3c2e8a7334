package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	connectAttempts = 30
	connectBackoff  = 2 * time.Second
)

// Connection wraps an AMQP connection shared by producers and consumers.
type Connection struct {
	URL  string
	Conn *amqp.Connection
}

// Connect establishes a connection to RabbitMQ with retries.
func Connect(ctx context.Context, url string, logger *slog.Logger) (*Connection, error) {
	var conn *amqp.Connection
	var err error

	for i := 0; i < connectAttempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			logger.Info("connected to RabbitMQ")
			return &Connection{URL: url, Conn: conn}, nil
		}
		logger.Warn("failed to connect to RabbitMQ, retrying", "error", err, "attempt", i+1, "backoff", connectBackoff)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}

	return nil, fmt.Errorf("could not connect to RabbitMQ after %d attempts: %w", connectAttempts, err)
}

// Channel opens a new AMQP channel.
func (c *Connection) Channel() (*amqp.Channel, error) {
	return c.Conn.Channel()
}

// NotifyLost delivers an error once if the broker closes the connection.
// A graceful Close delivers nothing.
func (c *Connection) NotifyLost() <-chan error {
	return lostSignal("connection", c.Conn.NotifyClose(make(chan *amqp.Error, 1)))
}

// NotifyBlocked delivers connection.blocked and connection.unblocked
// notifications. The channel closes with the connection.
func (c *Connection) NotifyBlocked() <-chan amqp.Blocking {
	return c.Conn.NotifyBlocked(make(chan amqp.Blocking, 1))
}

// NotifyChannelLost delivers an error once if the broker closes ch.
func NotifyChannelLost(ch *amqp.Channel) <-chan error {
	return lostSignal("channel", ch.NotifyClose(make(chan *amqp.Error, 1)))
}

func lostSignal(what string, closed <-chan *amqp.Error) <-chan error {
	out := make(chan error, 1)
	go func() {
		if amqpErr, ok := <-closed; ok && amqpErr != nil {
			out <- fmt.Errorf("rabbitmq %s lost: %w", what, amqpErr)
		}
	}()
	return out
}

// Close closes the connection.
func (c *Connection) Close() error {
	if c.Conn != nil {
		return c.Conn.Close()
	}
	return nil
}
