package rabbitmq

import (
	"fmt"
	"hash/fnv"
	"strconv"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology describes how a logical topic maps onto RabbitMQ: one durable
// direct exchange named after the topic and one queue per partition.
type Topology struct {
	Topic      string
	Partitions int
	// DeadLetterQueue receives messages rejected without requeue. Empty
	// means rejected messages are dropped.
	DeadLetterQueue string
}

// Declarer is the subset of *amqp.Channel used to create the topology.
type Declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// PartitionFor maps a message key to a partition with FNV-1a, so every
// message sharing a key lands on the same queue.
func PartitionFor(key string, partitions int) int {
	if partitions <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(partitions))
}

// QueueName returns the queue backing partition p.
func (t Topology) QueueName(p int) string {
	return fmt.Sprintf("%s.p%d", t.Topic, p)
}

// RoutingKey returns the binding key of partition p.
func (t Topology) RoutingKey(p int) string {
	return strconv.Itoa(p)
}

// Declare creates the exchange, the partition queues and their bindings if
// they are absent. It is idempotent.
func (t Topology) Declare(ch Declarer) error {
	if t.Partitions < 1 {
		return fmt.Errorf("topic %q needs at least one partition, got %d", t.Topic, t.Partitions)
	}

	err := ch.ExchangeDeclare(
		t.Topic,
		amqp.ExchangeDirect,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", t.Topic, err)
	}

	if t.DeadLetterQueue != "" {
		if _, err := ch.QueueDeclare(t.DeadLetterQueue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare dead-letter queue %s: %w", t.DeadLetterQueue, err)
		}
	}

	for p := 0; p < t.Partitions; p++ {
		queue := t.QueueName(p)
		if _, err := ch.QueueDeclare(queue, true, false, false, false, t.queueArgs()); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		if err := ch.QueueBind(queue, t.RoutingKey(p), t.Topic, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}
	return nil
}

func (t Topology) queueArgs() amqp.Table {
	// Only one consumer across all instances reads a partition at a time.
	args := amqp.Table{"x-single-active-consumer": true}
	if t.DeadLetterQueue != "" {
		args["x-dead-letter-exchange"] = ""
		args["x-dead-letter-routing-key"] = t.DeadLetterQueue
	}
	return args
}
