package events

import (
	"encoding/json"
	"sync"
	"time"

	"advocat/internal/metrics"
	"advocat/internal/models"

	"github.com/rs/zerolog"
)

const (
	EventBookingCreated     = "booking_created"
	EventContactCreated     = "contact_created"
	EventTestimonialCreated = "testimonial_created"
)

// BookingEventPayload is published once the remote API accepted a booking.
type BookingEventPayload struct {
	VisitorID string         `json:"visitor_id"`
	Booking   models.Booking `json:"booking"`
}

type ContactEventPayload struct {
	VisitorID string         `json:"visitor_id"`
	Contact   models.Contact `json:"contact"`
}

type TestimonialEventPayload struct {
	VisitorID   string             `json:"visitor_id"`
	Testimonial models.Testimonial `json:"testimonial"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into out.
func (e *Event) Decode(out any) error {
	return json.Unmarshal(e.Payload, out)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      zerolog.Logger
}

func NewEventBus(logger *zerolog.Logger) *EventBus {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "events").Logger()
	}
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: l}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs every handler of the event type synchronously. Handler errors
// are logged; they never reach the publisher.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	metrics.IncEvent(event.Type)

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			b.logger.Error().Err(err).Str("event", event.Type).Msg("event handler failed")
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
