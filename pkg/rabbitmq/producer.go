package rabbitmq

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"usernotify/pkg/middleware"
	"usernotify/pkg/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

// HeaderMessageKey carries the ordering key alongside each message.
const HeaderMessageKey = "message-key"

// ErrNacked is reported when the broker negatively confirms a publish.
var ErrNacked = errors.New("broker nacked the message")

// ErrBrokerBlocked is reported for publishes attempted while the broker
// has blocked the connection for flow control.
var ErrBrokerBlocked = errors.New("broker connection is blocked")

// Confirmation is a pending publisher confirm.
type Confirmation interface {
	DeliveryTag() uint64
	WaitContext(ctx context.Context) (bool, error)
}

// ConfirmChannel hands a message to the broker and returns its pending confirm.
type ConfirmChannel interface {
	PublishWithConfirm(ctx context.Context, exchange, key string, msg amqp.Publishing) (Confirmation, error)
}

type amqpConfirmChannel struct {
	ch *amqp.Channel
}

// NewConfirmChannel puts ch into confirm mode.
func NewConfirmChannel(ch *amqp.Channel) (ConfirmChannel, error) {
	if err := ch.Confirm(false); err != nil {
		return nil, err
	}
	return &amqpConfirmChannel{ch: ch}, nil
}

func (c *amqpConfirmChannel) PublishWithConfirm(ctx context.Context, exchange, key string, msg amqp.Publishing) (Confirmation, error) {
	dc, err := c.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return nil, err
	}
	if dc == nil {
		return nil, errors.New("channel is not in confirm mode")
	}
	return deferredConfirmation{dc: dc}, nil
}

type deferredConfirmation struct {
	dc *amqp.DeferredConfirmation
}

func (d deferredConfirmation) DeliveryTag() uint64 { return d.dc.DeliveryTag }

func (d deferredConfirmation) WaitContext(ctx context.Context) (bool, error) {
	return d.dc.WaitContext(ctx)
}

// Delivery holds the broker coordinates of a confirmed publish.
type Delivery struct {
	Topic     string
	Partition int
	Offset    uint64
	Timestamp time.Time
}

// PublishResult is the outcome of a publish. Exactly one of Delivery or Err
// is meaningful; Err is always a models.KindDelivery PipelineError.
type PublishResult struct {
	Delivery Delivery
	Err      error
}

// PublishHandle resolves once the broker confirms or the publish fails.
type PublishHandle struct {
	done   chan struct{}
	result PublishResult
}

func newPublishHandle() *PublishHandle {
	return &PublishHandle{done: make(chan struct{})}
}

// CompletedHandle returns a handle that is already resolved with res.
func CompletedHandle(res PublishResult) *PublishHandle {
	h := newPublishHandle()
	h.resolve(res)
	return h
}

func (h *PublishHandle) resolve(res PublishResult) {
	h.result = res
	close(h.done)
}

// Done is closed when the result is available.
func (h *PublishHandle) Done() <-chan struct{} { return h.done }

// Result returns the outcome. Only valid after Done is closed.
func (h *PublishHandle) Result() PublishResult { return h.result }

// Wait blocks until the handle resolves or ctx ends.
func (h *PublishHandle) Wait(ctx context.Context) (Delivery, error) {
	select {
	case <-h.done:
		return h.result.Delivery, h.result.Err
	case <-ctx.Done():
		return Delivery{}, ctx.Err()
	}
}

// Producer publishes lifecycle events to a partitioned topic.
type Producer struct {
	ch       ConfirmChannel
	topology Topology
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time
	mu       sync.Mutex
	blocked  atomic.Bool
}

// ProducerOption configures a Producer.
type ProducerOption func(*Producer)

// WithPublishTimeout bounds hand-off plus confirmation of a single publish.
func WithPublishTimeout(d time.Duration) ProducerOption {
	return func(p *Producer) { p.timeout = d }
}

// WithProducerLogger sets the producer's logger.
func WithProducerLogger(l *slog.Logger) ProducerOption {
	return func(p *Producer) { p.logger = l }
}

// WithProducerMetrics records publish outcomes.
func WithProducerMetrics(m *Metrics) ProducerOption {
	return func(p *Producer) { p.metrics = m }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) ProducerOption {
	return func(p *Producer) { p.now = now }
}

// NewProducer creates a producer for the given topology.
func NewProducer(ch ConfirmChannel, topology Topology, opts ...ProducerOption) *Producer {
	p := &Producer{
		ch:       ch,
		topology: topology,
		timeout:  10 * time.Second,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "producer")
	return p
}

// WatchBlocked tracks connection.blocked notifications, typically from
// amqp.Connection.NotifyBlocked. While blocked, Publish fails fast with
// ErrBrokerBlocked instead of writing to the socket. It returns when
// notifications closes.
func (p *Producer) WatchBlocked(notifications <-chan amqp.Blocking) {
	for b := range notifications {
		p.blocked.Store(b.Active)
		if b.Active {
			p.logger.Warn("broker blocked publishing", "reason", b.Reason)
		} else {
			p.logger.Info("broker unblocked publishing")
		}
	}
}

// Publish hands event to the broker and returns with a handle.
// The hand-off itself happens before Publish returns so calls made in order
// reach the broker in order; the confirm is awaited in the background.
// The socket write is not interruptible: if the broker blocks the
// connection after a write has started, Publish stalls until it unblocks.
// Failures never surface to the caller except through the handle.
func (p *Producer) Publish(ctx context.Context, event models.LifecycleEvent) *PublishHandle {
	handle := newPublishHandle()
	key := event.Key()
	partition := PartitionFor(key, p.topology.Partitions)
	log := p.logger.With(
		"event_id", event.EventID,
		"type", event.EventType,
		"user_id", event.UserID,
		"key", key,
		"topic", p.topology.Topic,
		"partition", partition,
	)

	log.Info("producing event", "email", event.Email)

	if err := event.Validate(); err != nil {
		p.fail(log, handle, event, models.DeliveryError("validate event", err))
		return handle
	}
	body, err := models.Encode(event)
	if err != nil {
		p.fail(log, handle, event, models.DeliveryError("encode event", err))
		return handle
	}

	if p.blocked.Load() {
		p.fail(log, handle, event, models.DeliveryError("publish event", ErrBrokerBlocked))
		return handle
	}

	// Request cancellation must not abort a publish for a mutation that already committed.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	ts := p.now().UTC()
	msg := amqp.Publishing{
		ContentType:   "application/json",
		MessageId:     event.EventID,
		CorrelationId: middleware.CorrelationIDFromContext(ctx),
		Type:          string(event.EventType),
		AppId:         event.Source,
		Headers:       amqp.Table{HeaderMessageKey: key},
		Body:          body,
		DeliveryMode:  amqp.Persistent,
		Timestamp:     ts,
	}

	p.mu.Lock()
	conf, err := p.ch.PublishWithConfirm(pubCtx, p.topology.Topic, p.topology.RoutingKey(partition), msg)
	p.mu.Unlock()
	if err != nil {
		cancel()
		p.fail(log, handle, event, models.DeliveryError("publish event", err))
		return handle
	}

	go func() {
		defer cancel()
		acked, err := conf.WaitContext(pubCtx)
		switch {
		case err != nil:
			p.fail(log, handle, event, models.DeliveryError("await confirm", err))
		case !acked:
			p.fail(log, handle, event, models.DeliveryError("await confirm", ErrNacked))
		default:
			d := Delivery{
				Topic:     p.topology.Topic,
				Partition: partition,
				Offset:    conf.DeliveryTag(),
				Timestamp: ts,
			}
			log.Info("event sent", "offset", d.Offset, "timestamp", d.Timestamp)
			p.metrics.observePublish(string(event.EventType), "ok")
			handle.resolve(PublishResult{Delivery: d})
		}
	}()

	return handle
}

func (p *Producer) fail(log *slog.Logger, h *PublishHandle, event models.LifecycleEvent, err error) {
	log.Error("event send failed", "error", err)
	p.metrics.observePublish(string(event.EventType), "error")
	h.resolve(PublishResult{Err: err})
}
