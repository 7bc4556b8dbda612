package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event types. They double as AMQP routing keys and, prefixed, Kafka topics.
const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
	ProductLowStock    = "product.low_stock"
)

// Types lists every event type the server emits.
var Types = []string{OrderCreated, OrderStatusChanged, ProductLowStock}

// Event is a notification about something that already happened.
type Event struct {
	Type       string            `json:"type"`
	OrderID    string            `json:"orderId,omitempty"`
	ProductID  string            `json:"productId,omitempty"`
	Payload    map[string]string `json:"payload,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// New stamps an event with the current time.
func New(eventType string, payload map[string]string) Event {
	return Event{Type: eventType, Payload: payload, OccurredAt: time.Now().UTC()}
}

// Key is the partition/correlation key: the order, else the product.
func (e Event) Key() string {
	if e.OrderID != "" {
		return e.OrderID
	}
	return e.ProductID
}

func Encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}

func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if e.Type == "" {
		return Event{}, fmt.Errorf("failed to decode event: missing type")
	}
	return e, nil
}

// Publisher delivers events to whatever listens for them.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// HandlerFunc processes one event.
type HandlerFunc func(ctx context.Context, e Event) error

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// InlinePublisher hands events straight to a handler in the caller's
// goroutine. Used when no broker is configured.
type InlinePublisher struct {
	handle HandlerFunc
}

func NewInlinePublisher(handle HandlerFunc) *InlinePublisher {
	return &InlinePublisher{handle: handle}
}

func (p *InlinePublisher) Publish(ctx context.Context, e Event) error {
	return p.handle(ctx, e)
}
