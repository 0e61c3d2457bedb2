package events

import (
	"errors"
	"testing"

	"advocat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus(nil)

	var received *Event
	callCount := 0
	bus.Subscribe(EventBookingCreated, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	payload := BookingEventPayload{
		VisitorID: "v1",
		Booking:   models.Booking{ID: 3, BookingForm: models.BookingForm{Email: "a@b.fr"}},
	}
	require.NoError(t, bus.PublishJSON(EventBookingCreated, payload))

	assert.Equal(t, 1, callCount)
	require.NotNil(t, received)
	assert.Equal(t, EventBookingCreated, received.Type)
	assert.False(t, received.CreatedAt.IsZero())

	var decoded BookingEventPayload
	require.NoError(t, received.Decode(&decoded))
	assert.Equal(t, payload, decoded)
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus(nil)
	var count1, count2 int

	bus.Subscribe(EventContactCreated, func(_ *Event) error { count1++; return errors.New("first fails") })
	bus.Subscribe(EventContactCreated, func(_ *Event) error { count2++; return nil })
	bus.Subscribe(EventTestimonialCreated, func(_ *Event) error { t.Fatal("wrong type delivered"); return nil })

	require.NoError(t, bus.PublishJSON(EventContactCreated, ContactEventPayload{}))
	assert.Equal(t, 1, count1)
	assert.Equal(t, 1, count2, "a failing handler must not stop the others")
}

func TestPublishJSONErrors(t *testing.T) {
	var nilBus *EventBus
	assert.NoError(t, nilBus.PublishJSON(EventBookingCreated, nil))

	bus := NewEventBus(nil)
	assert.Error(t, bus.PublishJSON(EventBookingCreated, make(chan int)))
}
