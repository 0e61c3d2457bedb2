package service

import (
	"context"
	"sync"

	"advocat/internal/domain"
	"advocat/internal/events"
	"advocat/internal/models"

	"github.com/rs/zerolog"
)

// BookingAPI is the part of the remote API the booking wizard uses.
type BookingAPI interface {
	Slots(ctx context.Context, categoryID, serviceID, staffID int64, date string) ([]models.Slot, error)
	CreateBooking(ctx context.Context, form models.BookingForm) (*models.Booking, error)
}

// BookingWizard holds one visitor's booking draft and the slots offered for it.
type BookingWizard struct {
	visitorID string
	state     *StateService
	api       BookingAPI
	eventBus  domain.EventPublisher
	logger    zerolog.Logger

	mu          sync.RWMutex
	draft       models.BookingDraft
	slots       []models.Slot
	lastBooking *models.Booking
}

func NewBookingWizard(visitorID string, api BookingAPI, state *StateService, eventBus domain.EventPublisher, logger *zerolog.Logger) *BookingWizard {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "booking").Str("visitor_id", visitorID).Logger()
	}
	return &BookingWizard{
		visitorID: visitorID,
		state:     state,
		api:       api,
		eventBus:  eventBus,
		logger:    l,
		slots:     []models.Slot{},
	}
}

// Restore puts back a persisted draft without writing it again.
func (w *BookingWizard) Restore(draft models.BookingDraft) {
	w.mu.Lock()
	w.draft = draft
	w.mu.Unlock()
}

func (w *BookingWizard) Draft() models.BookingDraft {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.draft
}

func (w *BookingWizard) Slots() []models.Slot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]models.Slot{}, w.slots...)
}

// LastBooking is the booking created most recently by this visitor, nil if none.
func (w *BookingWizard) LastBooking() *models.Booking {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastBooking
}

// SetDraft merges patch into the draft and persists it.
func (w *BookingWizard) SetDraft(ctx context.Context, patch models.DraftPatch) models.BookingDraft {
	w.mu.Lock()
	w.draft = w.draft.Merge(patch)
	draft := w.draft
	w.mu.Unlock()

	w.persist(ctx, draft)
	return draft
}

// ResetDraft clears the draft and the slots.
func (w *BookingWizard) ResetDraft(ctx context.Context) {
	w.mu.Lock()
	w.draft = models.BookingDraft{}
	w.slots = []models.Slot{}
	w.mu.Unlock()

	w.persist(ctx, models.BookingDraft{})
}

// LoadSlots fetches the slots for the draft. An incomplete draft empties the
// slots without calling the remote API; a failed call keeps the previous slots.
func (w *BookingWizard) LoadSlots(ctx context.Context) []models.Slot {
	draft := w.Draft()
	if !draft.ReadyForSlots() {
		w.mu.Lock()
		w.slots = []models.Slot{}
		w.mu.Unlock()
		return []models.Slot{}
	}

	slots, err := w.api.Slots(ctx, *draft.CategoryID, *draft.ServiceID, *draft.StaffID, *draft.Date)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to load slots")
		return w.Slots()
	}
	if slots == nil {
		slots = []models.Slot{}
	}

	w.mu.Lock()
	w.slots = slots
	w.mu.Unlock()
	return append([]models.Slot{}, slots...)
}

// CreateBooking validates the form, forwards it and publishes booking_created.
func (w *BookingWizard) CreateBooking(ctx context.Context, form models.BookingForm) (*models.Booking, error) {
	if err := models.Validate(form); err != nil {
		return nil, err
	}

	booking, err := w.api.CreateBooking(ctx, form)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to create booking")
		return nil, err
	}
	if booking.ID == 0 && booking.Email == "" {
		booking.BookingForm = form
	}

	w.mu.Lock()
	w.lastBooking = booking
	w.mu.Unlock()

	w.publishEvent(events.EventBookingCreated, events.BookingEventPayload{VisitorID: w.visitorID, Booking: *booking})
	return booking, nil
}

func (w *BookingWizard) persist(ctx context.Context, draft models.BookingDraft) {
	if w.state == nil {
		return
	}
	if err := w.state.SaveDraft(ctx, w.visitorID, draft); err != nil {
		w.logger.Warn().Err(err).Msg("draft not persisted")
	}
}

func (w *BookingWizard) publishEvent(eventType string, payload interface{}) {
	if w.eventBus == nil {
		return
	}
	if err := w.eventBus.PublishJSON(eventType, payload); err != nil {
		w.logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}
