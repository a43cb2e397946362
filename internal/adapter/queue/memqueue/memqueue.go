// Package memqueue is an in-process broker for local runs and tests. It keeps
// the delivery contract of the AMQP driver: manual settlement, requeue with a
// growing attempt count, and a dead-letter list.
package memqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
)

type message struct {
	body    []byte
	attempt int
}

// Queue implements ports.DebitPublisher and ports.DeliverySource.
type Queue struct {
	mu     sync.Mutex
	items  []message
	dead   [][]byte
	acked  int
	notify chan struct{}
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// PublishDebit enqueues req as JSON.
func (q *Queue) PublishDebit(ctx context.Context, req domain.DebitRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal debit request: %w", err)
	}
	q.Publish(body)
	return nil
}

// Publish enqueues a raw body.
func (q *Queue) Publish(body []byte) {
	q.push(message{body: body, attempt: 1}, false)
}

func (q *Queue) push(m message, front bool) {
	q.mu.Lock()
	if front {
		q.items = append([]message{m}, q.items...)
	} else {
		q.items = append(q.items, m)
	}
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *Queue) pop() (message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return message{}, false
	}
	m := q.items[0]
	q.items = q.items[1:]
	return m, true
}

// Consume delivers queued messages until ctx is cancelled.
func (q *Queue) Consume(ctx context.Context) (<-chan ports.Delivery, error) {
	out := make(chan ports.Delivery)
	go func() {
		defer close(out)
		for {
			m, ok := q.pop()
			if !ok {
				select {
				case <-q.notify:
					continue
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- &delivery{q: q, msg: m}:
			case <-ctx.Done():
				q.push(m, true)
				return
			}
		}
	}()
	return out, nil
}

// Len is the number of messages waiting for delivery.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Acked is the number of messages settled with Ack.
func (q *Queue) Acked() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.acked
}

// DeadLetters returns the bodies of dead-lettered messages.
func (q *Queue) DeadLetters() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([][]byte, len(q.dead))
	copy(out, q.dead)
	return out
}

type delivery struct {
	q       *Queue
	msg     message
	mu      sync.Mutex
	settled bool
}

func (d *delivery) Body() []byte { return d.msg.body }
func (d *delivery) Attempt() int { return d.msg.attempt }

func (d *delivery) settle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.settled {
		return fmt.Errorf("memqueue: delivery already settled")
	}
	d.settled = true
	return nil
}

func (d *delivery) Ack() error {
	if err := d.settle(); err != nil {
		return err
	}
	d.q.mu.Lock()
	d.q.acked++
	d.q.mu.Unlock()
	return nil
}

func (d *delivery) Requeue() error {
	if err := d.settle(); err != nil {
		return err
	}
	d.q.push(message{body: d.msg.body, attempt: d.msg.attempt + 1}, false)
	return nil
}

func (d *delivery) DeadLetter() error {
	if err := d.settle(); err != nil {
		return err
	}
	d.q.mu.Lock()
	d.q.dead = append(d.q.dead, d.msg.body)
	d.q.mu.Unlock()
	return nil
}
