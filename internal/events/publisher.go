// Package events publishes committed ledger operations to RabbitMQ so
// downstream systems (reporting, notifications) can react without
// touching the ledger's store.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/AliAlkhamasi/bank-ledger-service/internal/domain"
)

// EventTypeOperationCompleted is the eventType carried by every
// published message.
const EventTypeOperationCompleted = "ledger.operation.completed"

// RabbitMQPublisher implements domain.EventPublisher on a topic
// exchange.
type RabbitMQPublisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

// NewRabbitMQPublisher connects to RabbitMQ and declares the durable
// topic exchange the events are published to.
func NewRabbitMQPublisher(url, exchange, routingKey string) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &RabbitMQPublisher{
		conn:       conn,
		channel:    channel,
		exchange:   exchange,
		routingKey: routingKey,
	}, nil
}

// operationPayload is the wire shape of a published event.
type operationPayload struct {
	EventType       string `json:"eventType"`
	OperationID     string `json:"operationId"`
	Operation       string `json:"operation"`
	AccountID       int64  `json:"accountId"`
	TargetAccountID int64  `json:"targetAccountId,omitempty"`
	Amount          string `json:"amount"`
	CompletedAt     string `json:"completedAt"`
}

func newOperationPayload(event domain.OperationEvent) operationPayload {
	return operationPayload{
		EventType:       EventTypeOperationCompleted,
		OperationID:     event.OperationID.String(),
		Operation:       string(event.Operation),
		AccountID:       event.AccountID,
		TargetAccountID: event.TargetAccountID,
		Amount:          event.Amount.StringFixed(domain.AmountScale),
		CompletedAt:     event.CompletedAt.UTC().Format(time.RFC3339),
	}
}

// PublishOperationCompleted publishes a committed ledger operation as a
// persistent JSON message.
func (p *RabbitMQPublisher) PublishOperationCompleted(ctx context.Context, event domain.OperationEvent) error {
	body, err := json.Marshal(newOperationPayload(event))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		p.routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.CompletedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close closes the channel and connection.
func (p *RabbitMQPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

var _ domain.EventPublisher = (*RabbitMQPublisher)(nil)
