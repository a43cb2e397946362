package rabbitmq

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/ports"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// ConsumeChannel is the part of *amqp.Channel used to consume.
type ConsumeChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
}

// Source implements ports.DeliverySource with manual acknowledgements.
type Source struct {
	ch       ConsumeChannel
	queue    string
	tag      string
	prefetch int
	log      zerolog.Logger
}

// NewSource creates a source reading queue with at most prefetch unacked messages.
func NewSource(ch ConsumeChannel, queue, consumerTag string, prefetch int, log zerolog.Logger) *Source {
	if prefetch < 1 {
		prefetch = 1
	}
	return &Source{
		ch:       ch,
		queue:    queue,
		tag:      consumerTag,
		prefetch: prefetch,
		log:      log,
	}
}

// Consume starts the AMQP consumer. On cancellation the consumer is cancelled
// and the returned channel closed; unsettled messages return to the queue
// when the channel closes.
func (s *Source) Consume(ctx context.Context) (<-chan ports.Delivery, error) {
	if err := s.ch.Qos(s.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	msgs, err := s.ch.Consume(s.queue, s.tag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", s.queue, err)
	}

	out := make(chan ports.Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				s.cancel()
				return
			case d, ok := <-msgs:
				if !ok {
					s.log.Warn().Str("queue", s.queue).Msg("amqp delivery channel closed")
					return
				}
				select {
				case out <- &delivery{d: d}:
				case <-ctx.Done():
					if err := d.Nack(false, true); err != nil {
						s.log.Error().Err(err).Msg("failed to requeue message on shutdown")
					}
					s.cancel()
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *Source) cancel() {
	if err := s.ch.Cancel(s.tag, false); err != nil {
		s.log.Warn().Err(err).Str("consumer", s.tag).Msg("failed to cancel consumer")
	}
}

// delivery adapts amqp.Delivery to ports.Delivery.
type delivery struct {
	d amqp.Delivery
}

func (m *delivery) Body() []byte { return m.d.Body }

// Attempt derives the attempt number from the quorum queue's x-delivery-count header.
func (m *delivery) Attempt() int {
	switch v := m.d.Headers["x-delivery-count"].(type) {
	case int64:
		return int(v) + 1
	case int32:
		return int(v) + 1
	case int:
		return v + 1
	}
	if m.d.Redelivered {
		return 2
	}
	return 1
}

func (m *delivery) Ack() error        { return m.d.Ack(false) }
func (m *delivery) Requeue() error    { return m.d.Nack(false, true) }
func (m *delivery) DeadLetter() error { return m.d.Nack(false, false) }
