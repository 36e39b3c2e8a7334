package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"usernotify/pkg/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConsumerConfig holds configuration for consuming a partitioned topic.
type ConsumerConfig struct {
	Topology     Topology
	ConsumerName string
	// RequeueDelay is waited before a failed delivery is requeued, so a
	// failing dependency does not spin the partition.
	RequeueDelay time.Duration
}

// MessageHandler processes a delivered message.
// Return nil to ack. A MalformedPayload error rejects the message without
// requeue; any other error requeues it for redelivery.
type MessageHandler func(ctx context.Context, delivery amqp.Delivery) error

// Settlement results, also used as metric labels.
const (
	SettleAck     = "ack"
	SettleRequeue = "requeue"
	SettleReject  = "reject"
)

// ErrDeliveriesClosed is reported when the broker stops delivering to a worker.
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// PartitionWorker consumes one partition strictly in delivery order.
type PartitionWorker struct {
	Partition    int
	Handler      MessageHandler
	Logger       *slog.Logger
	Metrics      *Metrics
	RequeueDelay time.Duration
}

// Run processes msgs one at a time until the channel closes or ctx ends.
// Each message is settled before the next one is read. It returns
// ErrDeliveriesClosed if msgs closes while ctx is still live.
func (w *PartitionWorker) Run(ctx context.Context, msgs <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				w.Logger.Warn("delivery channel closed", "partition", w.Partition)
				return fmt.Errorf("partition %d: %w", w.Partition, ErrDeliveriesClosed)
			}
			w.process(ctx, msg)
		}
	}
}

func (w *PartitionWorker) process(ctx context.Context, msg amqp.Delivery) string {
	w.Logger.Debug("received message",
		"partition", w.Partition,
		"delivery_tag", msg.DeliveryTag,
		"message_id", msg.MessageId,
		"redelivered", msg.Redelivered,
		"correlation_id", msg.CorrelationId,
	)

	err := w.Handler(ctx, msg)
	result := SettleAck
	var settleErr error
	switch {
	case err == nil:
		settleErr = msg.Ack(false)
	case models.IsKind(err, models.KindMalformedPayload):
		result = SettleReject
		w.Logger.Error("rejecting malformed message",
			"partition", w.Partition, "message_id", msg.MessageId, "error", err)
		settleErr = msg.Reject(false)
	default:
		result = SettleRequeue
		w.Logger.Warn("processing failed, requeueing",
			"partition", w.Partition, "message_id", msg.MessageId, "error", err)
		w.waitBeforeRequeue(ctx)
		settleErr = msg.Nack(false, true)
	}
	if settleErr != nil {
		w.Logger.Error("failed to settle message",
			"partition", w.Partition, "result", result, "error", settleErr)
	}
	w.Metrics.observeSettle(result)
	return result
}

func (w *PartitionWorker) waitBeforeRequeue(ctx context.Context) {
	if w.RequeueDelay <= 0 {
		return
	}
	t := time.NewTimer(w.RequeueDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// ConsumerGroup is the set of partition workers of one process.
type ConsumerGroup struct {
	channels []*amqp.Channel
	wg       sync.WaitGroup
	done     chan error
	stop     chan struct{}
	once     sync.Once
	closing  atomic.Bool
}

func newConsumerGroup() *ConsumerGroup {
	return &ConsumerGroup{done: make(chan error, 1), stop: make(chan struct{})}
}

// Done delivers the first failure that stopped consumption: a lost broker
// connection or a worker whose deliveries ended. Nothing is delivered after
// a ctx cancel or Close.
func (g *ConsumerGroup) Done() <-chan error { return g.done }

func (g *ConsumerGroup) report(err error) {
	if g.closing.Load() {
		return
	}
	g.once.Do(func() { g.done <- err })
}

func (g *ConsumerGroup) start(ctx context.Context, w *PartitionWorker, msgs <-chan amqp.Delivery) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := w.Run(ctx, msgs); err != nil {
			g.report(err)
		}
	}()
}

func (g *ConsumerGroup) watch(ctx context.Context, lost <-chan error) {
	go func() {
		select {
		case err := <-lost:
			g.report(err)
		case <-ctx.Done():
		case <-g.stop:
		}
	}()
}

// StartConsumers declares the topology and starts one worker per partition,
// each on its own channel with a prefetch of one.
func StartConsumers(ctx context.Context, conn *Connection, cfg ConsumerConfig, handler MessageHandler, logger *slog.Logger, metrics *Metrics) (*ConsumerGroup, error) {
	logger = logger.With("component", "consumer", "consumer", cfg.ConsumerName)

	setup, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := cfg.Topology.Declare(setup); err != nil {
		_ = setup.Close()
		return nil, err
	}
	_ = setup.Close()

	g := newConsumerGroup()
	g.watch(ctx, conn.NotifyLost())
	for p := 0; p < cfg.Topology.Partitions; p++ {
		ch, err := conn.Channel()
		if err != nil {
			g.Close()
			return nil, err
		}
		g.channels = append(g.channels, ch)

		if err := ch.Qos(1, 0, false); err != nil {
			g.Close()
			return nil, err
		}

		queue := cfg.Topology.QueueName(p)
		msgs, err := ch.Consume(
			queue,
			fmt.Sprintf("%s-p%d", cfg.ConsumerName, p),
			false, // auto-ack = false (manual ack)
			false, // exclusive
			false, // no-local
			false, // no-wait
			nil,
		)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("consume %s: %w", queue, err)
		}

		w := &PartitionWorker{
			Partition:    p,
			Handler:      handler,
			Logger:       logger,
			Metrics:      metrics,
			RequeueDelay: cfg.RequeueDelay,
		}
		g.start(ctx, w, msgs)
		logger.Info("consumer started", "queue", queue, "partition", p)
	}
	return g, nil
}

// Close closes every partition channel, which returns unacked messages to
// their queues, and waits for the workers to exit.
func (g *ConsumerGroup) Close() error {
	if g.closing.Swap(true) {
		return nil
	}
	close(g.stop)
	var errs []error
	for _, ch := range g.channels {
		if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	g.wg.Wait()
	return errors.Join(errs...)
}
