// Package rabbitmq carries debit requests over AMQP 0-9-1.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Dial opens a named connection so it is identifiable in the management UI.
func Dial(cfg config.AMQPConfig, log zerolog.Logger) (*amqp.Connection, error) {
	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{
		Properties: amqp.Table{
			"connection_name": cfg.ConnectionName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("dialing rabbitmq: %w", err)
	}

	log.Info().
		Str("connection_name", cfg.ConnectionName).
		Str("exchange", cfg.Exchange).
		Str("queue", cfg.Queue).
		Msg("RabbitMQ connection established")

	return conn, nil
}

// HealthCheck implements ports.HealthChecker for the broker connection.
type HealthCheck struct {
	conn *amqp.Connection
}

// NewHealthCheck creates a RabbitMQ health checker.
func NewHealthCheck(conn *amqp.Connection) *HealthCheck {
	return &HealthCheck{conn: conn}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	if h.conn == nil || h.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "rabbitmq"
}
