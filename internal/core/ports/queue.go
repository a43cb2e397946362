package ports

import (
	"context"
	"errors"

	"wallet-ledger/internal/core/domain"
)

// ErrSourceClosed is returned when a delivery source can no longer produce messages.
var ErrSourceClosed = errors.New("delivery source closed")

// DebitPublisher sends debit requests to the broker.
type DebitPublisher interface {
	PublishDebit(ctx context.Context, req domain.DebitRequest) error
}

// Delivery is one received message. Exactly one of Ack, Requeue or DeadLetter settles it.
type Delivery interface {
	Body() []byte
	// Attempt is 1 on first delivery and grows with each redelivery.
	Attempt() int
	Ack() error
	Requeue() error
	DeadLetter() error
}

// DeliverySource yields debit messages until ctx is cancelled or the source fails.
// The returned channel is closed when consumption stops.
type DeliverySource interface {
	Consume(ctx context.Context) (<-chan Delivery, error)
}
