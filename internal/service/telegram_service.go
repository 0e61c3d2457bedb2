package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"advocat/internal/domain"
	"advocat/internal/events"
	"advocat/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// ErrNotifyQueueFull is returned when a notification is dropped because the
// send loop is behind.
var ErrNotifyQueueFull = errors.New("telegram queue full")

// TelegramNotifier tells the staff chats about new bookings, contact
// messages and testimonials. Event handlers only queue the text; Start
// does the sending, so a slow Telegram API never holds up a request.
type TelegramNotifier struct {
	bot     domain.TelegramSender
	chatIDs []int64
	queue   chan string
	logger  zerolog.Logger
}

func NewTelegramNotifier(bot domain.TelegramSender, chatIDs []int64, logger *zerolog.Logger) *TelegramNotifier {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "telegram").Logger()
	}
	return &TelegramNotifier{bot: bot, chatIDs: chatIDs, queue: make(chan string, 64), logger: l}
}

// Start sends queued notifications until ctx is done.
func (s *TelegramNotifier) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if n := len(s.queue); n > 0 {
				s.logger.Warn().Int("pending", n).Msg("telegram notifier stopped with pending messages")
			}
			return
		case text := <-s.queue:
			_ = s.Broadcast(text)
		}
	}
}

// Enqueue schedules text for every chat without waiting for Telegram.
func (s *TelegramNotifier) Enqueue(text string) error {
	select {
	case s.queue <- text:
		return nil
	default:
		s.logger.Warn().Msg("telegram queue full, notification dropped")
		return ErrNotifyQueueFull
	}
}

func (s *TelegramNotifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingCreated, s.handleBookingCreated)
	bus.Subscribe(events.EventContactCreated, s.handleContactCreated)
	bus.Subscribe(events.EventTestimonialCreated, s.handleTestimonialCreated)
}

func (s *TelegramNotifier) handleBookingCreated(e *events.Event) error {
	var p events.BookingEventPayload
	if err := e.Decode(&p); err != nil {
		return fmt.Errorf("decode booking event: %w", err)
	}
	return s.Enqueue(bookingText(&p.Booking))
}

func (s *TelegramNotifier) handleContactCreated(e *events.Event) error {
	var p events.ContactEventPayload
	if err := e.Decode(&p); err != nil {
		return fmt.Errorf("decode contact event: %w", err)
	}
	return s.Enqueue(contactText(&p.Contact))
}

func (s *TelegramNotifier) handleTestimonialCreated(e *events.Event) error {
	var p events.TestimonialEventPayload
	if err := e.Decode(&p); err != nil {
		return fmt.Errorf("decode testimonial event: %w", err)
	}
	return s.Enqueue(testimonialText(&p.Testimonial))
}

// Broadcast sends text to every configured chat. It keeps going after a
// failed chat and returns the first error.
func (s *TelegramNotifier) Broadcast(text string) error {
	var firstErr error
	for _, chatID := range s.chatIDs {
		if _, err := s.SendMessage(chatID, text); err != nil {
			s.logger.Error().Err(err).Int64("chat_id", chatID).Msg("telegram send failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *TelegramNotifier) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	return s.bot.Send(msg)
}

func bookingText(b *models.Booking) string {
	var sb strings.Builder
	sb.WriteString("📅 New booking\n")
	fmt.Fprintf(&sb, "%s %s\n", b.Firstname, b.Lastname)
	fmt.Fprintf(&sb, "When: %s\n", b.Datetime)
	fmt.Fprintf(&sb, "Email: %s\nPhone: %s", b.Email, b.Phone)
	return sb.String()
}

func contactText(c *models.Contact) string {
	var sb strings.Builder
	sb.WriteString("✉️ New contact message\n")
	fmt.Fprintf(&sb, "%s %s <%s>\n\n", c.Firstname, c.Lastname, c.Email)
	sb.WriteString(truncate(c.Message, 1000))
	return sb.String()
}

func testimonialText(t *models.Testimonial) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "⭐ New testimonial (%d/5) awaiting review\n", t.Rating)
	sb.WriteString(t.Author)
	if t.Job != "" {
		fmt.Fprintf(&sb, ", %s", t.Job)
	}
	sb.WriteString("\n\n")
	sb.WriteString(truncate(t.Message, 1000))
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
