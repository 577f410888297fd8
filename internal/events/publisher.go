package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventType represents the type of order event.
type EventType string

const (
	OrderCreated   EventType = "order.created"
	OrderPaid      EventType = "order.paid"
	OrderFailed    EventType = "order.failed"
	OrderCancelled EventType = "order.cancelled"
)

// StatusEvent maps an order status to its event type.
func StatusEvent(status string) EventType {
	return EventType("order." + status)
}

// OrderEvent is the envelope written to the orders topic.
type OrderEvent struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	OrderID   string          `json:"order_id"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, t EventType, orderID string, payload any) error
	Close() error
}

// KafkaPublisher publishes order events to Kafka, keyed by order id so one
// order's events stay on one partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.SugaredLogger
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.SugaredLogger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return &KafkaPublisher{
		writer: writer,
		logger: logger,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, t EventType, orderID string, payload any) error {
	event, err := NewEvent(t, orderID, payload)
	if err != nil {
		return err
	}

	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Errorw("failed to publish event",
			"event_id", event.ID, "event_type", event.Type, "order_id", event.OrderID, "error", err)
		return err
	}

	p.logger.Debugw("event published", "event_id", event.ID, "event_type", event.Type, "order_id", event.OrderID)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func NewEvent(t EventType, orderID string, payload any) (*OrderEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &OrderEvent{
		ID:        "evt_" + uuid.NewString(),
		Type:      t,
		OrderID:   orderID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NopPublisher is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, EventType, string, any) error { return nil }
func (NopPublisher) Close() error { return nil }
