package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type declared struct {
	name string
	args amqp.Table
}

type fakeChannel struct {
	mu        sync.Mutex
	exchanges []string
	queues    []declared
	bindings  [][3]string
	published []amqp.Publishing
	keys      []string
	qos       int
	cancelled []string
	msgs      chan amqp.Delivery
	pubErr    error
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.exchanges = append(f.exchanges, name+":"+kind)
	return nil
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.queues = append(f.queues, declared{name: name, args: args})
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	f.bindings = append(f.bindings, [3]string{name, key, exchange})
	return nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pubErr != nil {
		return f.pubErr
	}
	f.published = append(f.published, msg)
	f.keys = append(f.keys, exchange+"/"+key)
	return nil
}

func (f *fakeChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	f.qos = prefetchCount
	return nil
}

func (f *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return f.msgs, nil
}

func (f *fakeChannel) Cancel(consumer string, noWait bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, consumer)
	return nil
}

// fakeAcker records how each delivery tag was settled.
type fakeAcker struct {
	mu      sync.Mutex
	acked   []uint64
	nacked  []uint64
	requeue []bool
}

func (a *fakeAcker) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *fakeAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, tag)
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func TestDeclare(t *testing.T) {
	ch := &fakeChannel{}
	topo := Topology{
		Exchange:        "wallet.events",
		RoutingKey:      "wallet.debit.requested",
		Queue:           "wallet.debit",
		DeadLetterQueue: "wallet.debit.dlq",
		DeliveryLimit:   5,
	}

	require.NoError(t, Declare(ch, topo))

	assert.Equal(t, []string{"wallet.events:topic"}, ch.exchanges)
	require.Len(t, ch.queues, 2)
	assert.Equal(t, "wallet.debit.dlq", ch.queues[0].name)

	main := ch.queues[1]
	assert.Equal(t, "wallet.debit", main.name)
	assert.Equal(t, "quorum", main.args["x-queue-type"])
	assert.Equal(t, "", main.args["x-dead-letter-exchange"])
	assert.Equal(t, "wallet.debit.dlq", main.args["x-dead-letter-routing-key"])
	assert.Equal(t, int32(5), main.args["x-delivery-limit"])

	assert.Equal(t, [][3]string{{"wallet.debit", "wallet.debit.requested", "wallet.events"}}, ch.bindings)
}

func TestQueueArgs_NoDeliveryLimit(t *testing.T) {
	args := Topology{DeadLetterQueue: "dlq"}.queueArgs()
	assert.NotContains(t, args, "x-delivery-limit")
}

func TestPublisher_PublishDebit(t *testing.T) {
	ch := &fakeChannel{}
	pub := NewPublisher(ch, "wallet.events", "wallet.debit.requested", zerolog.Nop())

	req := domain.DebitRequest{OwnerKey: "ana@example.com", Amount: decimal.RequireFromString("12.90"), RequestID: "album-1"}
	require.NoError(t, pub.PublishDebit(context.Background(), req))

	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, "wallet.events/wallet.debit.requested", ch.keys[0])
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "album-1", msg.MessageId)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "ana@example.com", decoded["ownerKey"])
	assert.Equal(t, "12.9", decoded["amount"])
	assert.Equal(t, "album-1", decoded["requestId"])

	parsed, err := domain.ParseDebitRequest(msg.Body)
	require.NoError(t, err)
	assert.True(t, parsed.Amount.Equal(req.Amount))
}

func TestPublisher_PublishError(t *testing.T) {
	ch := &fakeChannel{pubErr: amqp.ErrClosed}
	pub := NewPublisher(ch, "x", "k", zerolog.Nop())

	err := pub.PublishDebit(context.Background(), domain.DebitRequest{OwnerKey: "a", Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, amqp.ErrClosed))
}

func TestSource_ConsumeAndSettle(t *testing.T) {
	ch := &fakeChannel{msgs: make(chan amqp.Delivery, 3)}
	acker := &fakeAcker{}
	src := NewSource(ch, "wallet.debit", "ledger-worker", 16, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := src.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 16, ch.qos)

	ch.msgs <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 1, Body: []byte(`{"a":1}`)}
	ch.msgs <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 2, Headers: amqp.Table{"x-delivery-count": int64(3)}}
	ch.msgs <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 3, Redelivered: true}

	first := <-out
	assert.Equal(t, `{"a":1}`, string(first.Body()))
	assert.Equal(t, 1, first.Attempt())
	require.NoError(t, first.Ack())

	second := <-out
	assert.Equal(t, 4, second.Attempt())
	require.NoError(t, second.Requeue())

	third := <-out
	assert.Equal(t, 2, third.Attempt())
	require.NoError(t, third.DeadLetter())

	assert.Equal(t, []uint64{1}, acker.acked)
	assert.Equal(t, []uint64{2, 3}, acker.nacked)
	assert.Equal(t, []bool{true, false}, acker.requeue)
}

func TestSource_CancelClosesChannel(t *testing.T) {
	ch := &fakeChannel{msgs: make(chan amqp.Delivery)}
	src := NewSource(ch, "wallet.debit", "ledger-worker", 0, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	out, err := src.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ch.qos)

	cancel()

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("delivery channel not closed after cancel")
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	assert.Equal(t, []string{"ledger-worker"}, ch.cancelled)
}

func TestSource_BrokerClosesChannel(t *testing.T) {
	ch := &fakeChannel{msgs: make(chan amqp.Delivery)}
	src := NewSource(ch, "wallet.debit", "ledger-worker", 4, zerolog.Nop())

	out, err := src.Consume(context.Background())
	require.NoError(t, err)

	close(ch.msgs)

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("delivery channel not closed after broker close")
	}
}

func TestHealthCheck_NilConnection(t *testing.T) {
	hc := NewHealthCheck(nil)
	assert.Equal(t, "rabbitmq", hc.Name())
	assert.Error(t, hc.Ping(context.Background()))
}
