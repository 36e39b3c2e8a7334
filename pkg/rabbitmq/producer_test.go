package rabbitmq

import (
	"context"
	"errors"
	"testing"
	"time"

	"usernotify/pkg/logger"
	"usernotify/pkg/middleware"
	"usernotify/pkg/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProducer(ch ConfirmChannel, partitions int, opts ...ProducerOption) *Producer {
	opts = append([]ProducerOption{WithProducerLogger(logger.Discard())}, opts...)
	return NewProducer(ch, Topology{Topic: "user.account", Partitions: partitions}, opts...)
}

func waitHandle(t *testing.T, h *PublishHandle) (Delivery, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return h.Wait(ctx)
}

func TestPublishSuccess(t *testing.T) {
	broker := newMemBroker(4)
	fixed := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	p := newTestProducer(broker, 4, WithClock(func() time.Time { return fixed }), WithProducerMetrics(metrics))

	event := models.NewUserCreated(42, "alice@example.com", "userdb-api")
	ctx := middleware.ContextWithCorrelationID(context.Background(), "corr-1")

	d, err := waitHandle(t, p.Publish(ctx, event))
	require.NoError(t, err)

	partition := PartitionFor("42", 4)
	assert.Equal(t, Delivery{Topic: "user.account", Partition: partition, Offset: 1, Timestamp: fixed}, d)

	require.Len(t, broker.published, 1)
	pub := broker.published[0]
	assert.Equal(t, "user.account", pub.exchange)
	assert.Equal(t, p.topology.RoutingKey(partition), pub.key)
	assert.Equal(t, event.EventID, pub.msg.MessageId)
	assert.Equal(t, "corr-1", pub.msg.CorrelationId)
	assert.Equal(t, "42", pub.msg.Headers[HeaderMessageKey])
	assert.Equal(t, "application/json", pub.msg.ContentType)

	decoded, err := models.Decode(pub.msg.Body)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, decoded.EventID)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.published.WithLabelValues("USER_CREATED", "ok")))
}

func TestPublishHandOffFailure(t *testing.T) {
	broker := newMemBroker(1)
	broker.publishErr = errors.New("connection refused")
	p := newTestProducer(broker, 1)

	_, err := waitHandle(t, p.Publish(context.Background(), models.NewUserDeleted(7, "bob@example.com", "userdb-api")))
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindDelivery))
	assert.ErrorIs(t, err, broker.publishErr)
}

func TestPublishNacked(t *testing.T) {
	broker := newMemBroker(1)
	broker.nack = true
	p := newTestProducer(broker, 1)

	_, err := waitHandle(t, p.Publish(context.Background(), models.NewUserCreated(1, "a@example.com", "userdb-api")))
	assert.True(t, models.IsKind(err, models.KindDelivery))
	assert.ErrorIs(t, err, ErrNacked)
}

func TestPublishInvalidEventNeverReachesBroker(t *testing.T) {
	broker := newMemBroker(1)
	p := newTestProducer(broker, 1)

	h := p.Publish(context.Background(), models.LifecycleEvent{EventType: models.EventUserCreated})
	_, err := waitHandle(t, h)
	assert.True(t, models.IsKind(err, models.KindDelivery))
	assert.Empty(t, broker.published)
	assert.Equal(t, err, h.Result().Err)
}

func TestPublishConfirmTimeout(t *testing.T) {
	p := newTestProducer(blockingChannel{}, 1, WithPublishTimeout(200*time.Millisecond))

	h := p.Publish(context.Background(), models.NewUserCreated(1, "a@example.com", "userdb-api"))
	select {
	case <-h.Done():
		t.Fatal("Publish must return before the confirm arrives")
	default:
	}

	_, err := waitHandle(t, h)
	assert.True(t, models.IsKind(err, models.KindDelivery))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPublishSurvivesCallerCancellation(t *testing.T) {
	broker := newMemBroker(1)
	p := newTestProducer(broker, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := p.Publish(ctx, models.NewUserCreated(1, "a@example.com", "userdb-api"))

	_, err := waitHandle(t, h)
	assert.NoError(t, err)
}

func TestPublishSameKeyKeepsOrder(t *testing.T) {
	broker := newMemBroker(4)
	p := newTestProducer(broker, 4)

	created := models.NewUserCreated(99, "dora@example.com", "userdb-api")
	deleted := models.NewUserDeleted(99, "dora@example.com", "userdb-api")
	other := models.NewUserCreated(100, "eve@example.com", "userdb-api")

	for _, e := range []models.LifecycleEvent{created, other, deleted} {
		_, err := waitHandle(t, p.Publish(context.Background(), e))
		require.NoError(t, err)
	}

	q := broker.queues[PartitionFor("99", 4)]
	var ids []string
	for len(q.ch) > 0 {
		d := <-q.ch
		if d.Headers[HeaderMessageKey] == "99" {
			ids = append(ids, d.MessageId)
		}
	}
	assert.Equal(t, []string{created.EventID, deleted.EventID}, ids)
}

func TestPublishFailsFastWhileBlocked(t *testing.T) {
	broker := newMemBroker(1)
	p := newTestProducer(broker, 1)

	notifications := make(chan amqp.Blocking)
	watched := make(chan struct{})
	go func() {
		p.WatchBlocked(notifications)
		close(watched)
	}()

	notifications <- amqp.Blocking{Active: true, Reason: "low on memory"}
	require.Eventually(t, p.blocked.Load, time.Second, 5*time.Millisecond)

	_, err := waitHandle(t, p.Publish(context.Background(), models.NewUserCreated(1, "a@example.com", "userdb-api")))
	assert.True(t, models.IsKind(err, models.KindDelivery))
	assert.ErrorIs(t, err, ErrBrokerBlocked)
	assert.Empty(t, broker.published)

	notifications <- amqp.Blocking{Active: false}
	require.Eventually(t, func() bool { return !p.blocked.Load() }, time.Second, 5*time.Millisecond)

	_, err = waitHandle(t, p.Publish(context.Background(), models.NewUserCreated(1, "a@example.com", "userdb-api")))
	require.NoError(t, err)
	assert.Len(t, broker.published, 1)

	close(notifications)
	<-watched
}

func TestCompletedHandle(t *testing.T) {
	h := CompletedHandle(PublishResult{Err: models.DeliveryError("publish", errors.New("boom"))})
	select {
	case <-h.Done():
	default:
		t.Fatal("expected handle to be resolved")
	}
	assert.Error(t, h.Result().Err)
}
