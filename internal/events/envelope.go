package events

import (
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Order events go to one durable topic exchange shared with the other
// ecommerce services; routing keys carry the contract version.
const (
	EventsExchange               = "ecommerce.events"
	OrderPlacedRoutingKey        = "order.placed.v1"
	OrderStatusChangedRoutingKey = "order.status_changed.v1"
	producerName                 = "storefront-go"
	envelopeVersion              = 1
)

var ErrInvalidEnvelope = errors.New("invalid event envelope")

// Envelope is the shared v1 wrapper around every published payload.
type Envelope[T any] struct {
	EventName     string    `json:"eventName"`
	EventVersion  int       `json:"eventVersion"`
	EventID       string    `json:"eventId"`
	CorrelationID string    `json:"correlationId,omitempty"`
	CausationID   string    `json:"causationId,omitempty"`
	Producer      string    `json:"producer"`
	PartitionKey  string    `json:"partitionKey"`
	Sequence      int64     `json:"sequence,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
	Schema        string    `json:"schema"`
	Payload       T         `json:"payload"`
}

// Validate reports ErrInvalidEnvelope when the envelope is not the expected
// event or lacks its identity fields.
func (e Envelope[T]) Validate(name string, version int) error {
	switch {
	case e.EventName != name:
		return fmt.Errorf("%w: eventName %q, want %q", ErrInvalidEnvelope, e.EventName, name)
	case e.EventVersion != version:
		return fmt.Errorf("%w: eventVersion %d, want %d", ErrInvalidEnvelope, e.EventVersion, version)
	case e.EventID == "":
		return fmt.Errorf("%w: missing eventId", ErrInvalidEnvelope)
	case e.PartitionKey == "":
		return fmt.Errorf("%w: missing partitionKey", ErrInvalidEnvelope)
	}
	return nil
}

func declareEventsExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(EventsExchange, amqp.ExchangeTopic, true, false, false, false, nil)
}
