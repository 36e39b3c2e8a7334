package rabbitmq

import (
	"context"
	"errors"
	"strconv"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// memQueue is an in-memory partition queue that redelivers requeued messages.
type memQueue struct {
	mu       sync.Mutex
	ch       chan amqp.Delivery
	pending  map[uint64]amqp.Delivery
	nextTag  uint64
	acked    []uint64
	rejected []uint64
	requeued []uint64
}

func newMemQueue(size int) *memQueue {
	return &memQueue{ch: make(chan amqp.Delivery, size), pending: make(map[uint64]amqp.Delivery)}
}

func (q *memQueue) push(msg amqp.Publishing) {
	q.mu.Lock()
	q.nextTag++
	d := amqp.Delivery{
		Acknowledger:  q,
		DeliveryTag:   q.nextTag,
		MessageId:     msg.MessageId,
		CorrelationId: msg.CorrelationId,
		Headers:       msg.Headers,
		Body:          msg.Body,
		Type:          msg.Type,
	}
	q.pending[d.DeliveryTag] = d
	q.mu.Unlock()
	q.ch <- d
}

func (q *memQueue) Ack(tag uint64, multiple bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, tag)
	q.acked = append(q.acked, tag)
	return nil
}

func (q *memQueue) Reject(tag uint64, requeue bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, tag)
	q.rejected = append(q.rejected, tag)
	return nil
}

func (q *memQueue) Nack(tag uint64, multiple bool, requeue bool) error {
	q.mu.Lock()
	d, ok := q.pending[tag]
	q.requeued = append(q.requeued, tag)
	q.mu.Unlock()
	if !ok {
		return errors.New("unknown delivery tag")
	}
	if requeue {
		d.Redelivered = true
		q.ch <- d
	}
	return nil
}

func (q *memQueue) counts() (acked, rejected, requeued int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.acked), len(q.rejected), len(q.requeued)
}

// memBroker implements ConfirmChannel by routing to memQueues by partition.
type memBroker struct {
	mu         sync.Mutex
	queues     []*memQueue
	published  []published
	publishErr error
	nack       bool
	tag        uint64
}

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

func newMemBroker(partitions int) *memBroker {
	b := &memBroker{}
	for i := 0; i < partitions; i++ {
		b.queues = append(b.queues, newMemQueue(64))
	}
	return b
}

func (b *memBroker) PublishWithConfirm(ctx context.Context, exchange, key string, msg amqp.Publishing) (Confirmation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return nil, b.publishErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.tag++
	b.published = append(b.published, published{exchange: exchange, key: key, msg: msg})
	p, err := strconv.Atoi(key)
	if err != nil {
		return nil, err
	}
	b.queues[p].push(msg)
	return fakeConfirmation{tag: b.tag, acked: !b.nack}, nil
}

type fakeConfirmation struct {
	tag   uint64
	acked bool
	block bool
}

func (c fakeConfirmation) DeliveryTag() uint64 { return c.tag }

func (c fakeConfirmation) WaitContext(ctx context.Context) (bool, error) {
	if c.block {
		<-ctx.Done()
		return false, ctx.Err()
	}
	return c.acked, nil
}

// blockingChannel never receives a confirm.
type blockingChannel struct{}

func (blockingChannel) PublishWithConfirm(ctx context.Context, exchange, key string, msg amqp.Publishing) (Confirmation, error) {
	return fakeConfirmation{tag: 1, block: true}, nil
}
