package domain

import (
	"context"
	"time"

	"advocat/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// StateRepository persists visitor state between gateway restarts.
type StateRepository interface {
	GetState(ctx context.Context, visitorID string) (*models.VisitorState, error)
	SetState(ctx context.Context, state *models.VisitorState) error
	ClearState(ctx context.Context, visitorID string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type SheetsWriter interface {
	AppendBooking(ctx context.Context, booking *models.Booking) error
	AppendContact(ctx context.Context, contact *models.Contact) error
}
