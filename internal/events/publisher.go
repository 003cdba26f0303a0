package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tiendago/tienda-api/internal/model"
)

const orderEventsQueue = "order-events"

// Setup declares the durable queue order events are published to. Consumers
// live outside this service.
func Setup(ch *amqp.Channel) error {
	if _, err := ch.QueueDeclare(orderEventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare order events queue: %w", err)
	}
	return nil
}

// Publisher emits order lifecycle events to RabbitMQ. Publishing is
// best-effort: the order workflow has already committed by the time an event
// goes out, and a lost event must not fail the request.
type Publisher struct {
	ch *amqp.Channel
}

func NewPublisher(ch *amqp.Channel) *Publisher {
	return &Publisher{ch: ch}
}

func (p *Publisher) PublishOrderEvent(ctx context.Context, ev model.OrderEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	err = p.ch.PublishWithContext(ctx, "", orderEventsQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}
