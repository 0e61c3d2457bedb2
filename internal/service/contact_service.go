package service

import (
	"context"

	"advocat/internal/domain"
	"advocat/internal/events"
	"advocat/internal/models"

	"github.com/rs/zerolog"
)

// SubmissionAPI accepts the public forms.
type SubmissionAPI interface {
	CreateContact(ctx context.Context, form models.ContactForm) (*models.Contact, error)
	CreateTestimonial(ctx context.Context, form models.TestimonialForm) (*models.Testimonial, error)
}

// ContactService forwards contact messages and testimonials and announces them.
type ContactService struct {
	api      SubmissionAPI
	eventBus domain.EventPublisher
	logger   zerolog.Logger
}

func NewContactService(api SubmissionAPI, eventBus domain.EventPublisher, logger *zerolog.Logger) *ContactService {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "contact").Logger()
	}
	return &ContactService{api: api, eventBus: eventBus, logger: l}
}

func (s *ContactService) SendContact(ctx context.Context, visitorID string, form models.ContactForm) (*models.Contact, error) {
	if err := models.Validate(form); err != nil {
		return nil, err
	}
	contact, err := s.api.CreateContact(ctx, form)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to send contact message")
		return nil, err
	}
	if contact.ID == 0 && contact.Email == "" {
		contact.ContactForm = form
	}
	s.publish(events.EventContactCreated, events.ContactEventPayload{VisitorID: visitorID, Contact: *contact})
	return contact, nil
}

// CreateTestimonial validates and forwards a testimonial with its optional picture.
func (s *ContactService) CreateTestimonial(ctx context.Context, visitorID string, form models.TestimonialForm) (*models.Testimonial, error) {
	if err := models.Validate(form); err != nil {
		return nil, err
	}
	t, err := s.api.CreateTestimonial(ctx, form)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create testimonial")
		return nil, err
	}
	s.publish(events.EventTestimonialCreated, events.TestimonialEventPayload{VisitorID: visitorID, Testimonial: *t})
	return t, nil
}

func (s *ContactService) publish(eventType string, payload interface{}) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}
