package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"wallet-ledger/internal/core/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// PublishChannel is the part of *amqp.Channel used to publish.
type PublishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher implements ports.DebitPublisher. An amqp channel is not safe for
// concurrent publishing, so calls are serialized.
type Publisher struct {
	mu         sync.Mutex
	ch         PublishChannel
	exchange   string
	routingKey string
	log        zerolog.Logger
}

// NewPublisher creates a publisher that routes debit requests to exchange with routingKey.
func NewPublisher(ch PublishChannel, exchange, routingKey string, log zerolog.Logger) *Publisher {
	return &Publisher{
		ch:         ch,
		exchange:   exchange,
		routingKey: routingKey,
		log:        log,
	}
}

// PublishDebit sends req as a persistent JSON message.
func (p *Publisher) PublishDebit(ctx context.Context, req domain.DebitRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal debit request: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    req.RequestID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish debit: %w", err)
	}

	p.log.Debug().
		Str("routing_key", p.routingKey).
		Str("owner_key", req.OwnerKey).
		Str("request_id", req.RequestID).
		Msg("debit request published")
	return nil
}
