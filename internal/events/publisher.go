package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/middleware"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
	"github.com/google/uuid"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Sequencer hands out a monotonically increasing number per partition key.
type Sequencer interface {
	NextSequence(ctx context.Context, partitionKey string) (int64, error)
}

type Publisher struct {
	ch       channel
	seq      Sequencer
	producer string
	now      func() time.Time
	newID    func() string
}

func NewPublisher(conn *amqp.Connection, seq Sequencer) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	return newPublisher(ch, seq), nil
}

func newPublisher(ch channel, seq Sequencer) *Publisher {
	return &Publisher{
		ch:       ch,
		seq:      seq,
		producer: producerName,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) PublishOrderPlaced(ctx context.Context, o order.Order) error {
	payload := OrderPlacedPayload{
		OrderID:     o.ID,
		UserID:      o.UserID,
		AddressID:   o.AddressID,
		TotalAmount: o.TotalAmount,
		Status:      string(o.Status),
		PlacedAt:    o.CreatedAt.UTC(),
		Items:       make([]OrderPlacedLine, 0, len(o.Lines)),
	}
	if o.Payment != nil {
		payload.PaymentStatus = string(o.Payment.Status)
		payload.PaymentMethod = string(o.Payment.Method)
	}
	for _, l := range o.Lines {
		payload.Items = append(payload.Items, OrderPlacedLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}

	env, err := newEnvelope(ctx, p, EventTypeOrderPlaced, orderPlacedSchema, o.ID, payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal OrderPlaced envelope: %w", err)
	}
	return p.publishJSON(ctx, OrderPlacedRoutingKey, body)
}

func (p *Publisher) PublishOrderStatusChanged(ctx context.Context, o order.Order, previous order.Status) error {
	payload := OrderStatusChangedPayload{
		OrderID:        o.ID,
		UserID:         o.UserID,
		PreviousStatus: string(previous),
		Status:         string(o.Status),
		ChangedAt:      p.now(),
	}

	env, err := newEnvelope(ctx, p, EventTypeOrderStatusChanged, orderStatusChangedSchema, o.ID, payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal OrderStatusChanged envelope: %w", err)
	}
	return p.publishJSON(ctx, OrderStatusChangedRoutingKey, body)
}

func newEnvelope[T any](ctx context.Context, p *Publisher, name, schema string, orderID int64, payload T) (Envelope[T], error) {
	partitionKey := strconv.FormatInt(orderID, 10)
	seq, err := p.seq.NextSequence(ctx, partitionKey)
	if err != nil {
		return Envelope[T]{}, fmt.Errorf("reserve sequence: %w", err)
	}

	cid := middleware.GetCorrelationID(ctx)
	if cid == "" {
		cid = p.newID()
	}
	return Envelope[T]{
		EventName:     name,
		EventVersion:  envelopeVersion,
		EventID:       p.newID(),
		CorrelationID: cid,
		Producer:      p.producer,
		PartitionKey:  partitionKey,
		Sequence:      seq,
		OccurredAt:    p.now(),
		Schema:        schema,
		Payload:       payload,
	}, nil
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// NopPublisher is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderPlaced(context.Context, order.Order) error { return nil }

func (NopPublisher) PublishOrderStatusChanged(context.Context, order.Order, order.Status) error {
	return nil
}
