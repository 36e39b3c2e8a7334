package rabbitmq

import (
	"errors"
	"strconv"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type declaredQueue struct {
	name string
	args amqp.Table
}

type binding struct {
	queue, key, exchange string
}

type fakeDeclarer struct {
	exchanges []string
	kinds     []string
	queues    []declaredQueue
	bindings  []binding
	failBind  error
}

func (f *fakeDeclarer) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.exchanges = append(f.exchanges, name)
	f.kinds = append(f.kinds, kind)
	return nil
}

func (f *fakeDeclarer) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.queues = append(f.queues, declaredQueue{name: name, args: args})
	return amqp.Queue{Name: name}, nil
}

func (f *fakeDeclarer) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	if f.failBind != nil {
		return f.failBind
	}
	f.bindings = append(f.bindings, binding{queue: name, key: key, exchange: exchange})
	return nil
}

func TestPartitionForIsDeterministic(t *testing.T) {
	for _, key := range []string{"1", "42", "1000001"} {
		first := PartitionFor(key, 8)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, PartitionFor(key, 8))
		}
		assert.GreaterOrEqual(t, first, 0)
		assert.Less(t, first, 8)
	}
}

func TestPartitionForSinglePartition(t *testing.T) {
	assert.Equal(t, 0, PartitionFor("42", 1))
	assert.Equal(t, 0, PartitionFor("42", 0))
}

func TestPartitionForSpreadsKeys(t *testing.T) {
	seen := make(map[int]bool)
	for id := 1; id <= 200; id++ {
		seen[PartitionFor(strconv.Itoa(id), 4)] = true
	}
	assert.Len(t, seen, 4)
}

func TestDeclareTopology(t *testing.T) {
	d := &fakeDeclarer{}
	topo := Topology{Topic: "user.account", Partitions: 3}

	require.NoError(t, topo.Declare(d))

	assert.Equal(t, []string{"user.account"}, d.exchanges)
	assert.Equal(t, []string{amqp.ExchangeDirect}, d.kinds)
	require.Len(t, d.queues, 3)
	for p, q := range d.queues {
		assert.Equal(t, topo.QueueName(p), q.name)
		assert.Equal(t, true, q.args["x-single-active-consumer"])
		assert.NotContains(t, q.args, "x-dead-letter-routing-key")
	}
	assert.Equal(t, binding{queue: "user.account.p2", key: "2", exchange: "user.account"}, d.bindings[2])
}

func TestDeclareTopologyWithDeadLetterQueue(t *testing.T) {
	d := &fakeDeclarer{}
	topo := Topology{Topic: "user.account", Partitions: 1, DeadLetterQueue: "dlq.user.account"}

	require.NoError(t, topo.Declare(d))

	require.Len(t, d.queues, 2)
	assert.Equal(t, "dlq.user.account", d.queues[0].name)
	assert.Equal(t, "dlq.user.account", d.queues[1].args["x-dead-letter-routing-key"])
	assert.Equal(t, "", d.queues[1].args["x-dead-letter-exchange"])
}

func TestDeclareTopologyErrors(t *testing.T) {
	err := Topology{Topic: "user.account", Partitions: 0}.Declare(&fakeDeclarer{})
	assert.Error(t, err)

	bindErr := errors.New("access refused")
	err = Topology{Topic: "user.account", Partitions: 1}.Declare(&fakeDeclarer{failBind: bindErr})
	assert.ErrorIs(t, err, bindErr)
}
