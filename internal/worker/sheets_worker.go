package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"advocat/internal/domain"
	"advocat/internal/events"
	"advocat/internal/metrics"
	"advocat/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskAppendBooking = "append_booking"
	TaskAppendContact = "append_contact"
)

// SyncTask is one row to mirror into Google Sheets.
type SyncTask struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Booking   *models.Booking `json:"booking,omitempty"`
	Contact   *models.Contact `json:"contact,omitempty"`
	Attempt   int             `json:"attempt"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// SheetsWorker mirrors created bookings and contacts into Google Sheets.
// Tasks go through redis when available, an in-memory queue otherwise.
// Failed tasks are retried with backoff and end up in a dead letter list.
type SheetsWorker struct {
	sheets        domain.SheetsWriter
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	logger        zerolog.Logger

	after   func(time.Duration, func()) *time.Timer
	pending atomic.Int64
}

func NewSheetsWorker(sheets domain.SheetsWriter, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *SheetsWorker {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "sheets_worker").Logger()
	}

	return &SheetsWorker{
		sheets:        sheets,
		redis:         redisClient,
		retryPolicy:   retry.withDefaults(),
		queue:         make(chan SyncTask, 128),
		redisQueueKey: "advocat:sheets:queue",
		deadLetterKey: "advocat:sheets:deadletter",
		pollInterval:  2 * time.Second,
		logger:        l,
		after:         time.AfterFunc,
	}
}

// Subscribe wires the worker to creation events.
func (w *SheetsWorker) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingCreated, w.handleBookingCreated)
	bus.Subscribe(events.EventContactCreated, w.handleContactCreated)
}

func (w *SheetsWorker) handleBookingCreated(e *events.Event) error {
	var p events.BookingEventPayload
	if err := e.Decode(&p); err != nil {
		return fmt.Errorf("decode booking event: %w", err)
	}
	return w.EnqueueTask(context.Background(), SyncTask{Type: TaskAppendBooking, Booking: &p.Booking})
}

func (w *SheetsWorker) handleContactCreated(e *events.Event) error {
	var p events.ContactEventPayload
	if err := e.Decode(&p); err != nil {
		return fmt.Errorf("decode contact event: %w", err)
	}
	return w.EnqueueTask(context.Background(), SyncTask{Type: TaskAppendContact, Contact: &p.Contact})
}

// EnqueueTask validates and schedules a task.
func (w *SheetsWorker) EnqueueTask(ctx context.Context, task SyncTask) error {
	switch task.Type {
	case TaskAppendBooking:
		if task.Booking == nil {
			return errors.New("booking payload is required")
		}
	case TaskAppendContact:
		if task.Contact == nil {
			return errors.New("contact payload is required")
		}
	case "":
		return errors.New("task type is required")
	default:
		return fmt.Errorf("unknown task type: %s", task.Type)
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	return w.schedule(ctx, task)
}

func (w *SheetsWorker) schedule(ctx context.Context, task SyncTask) error {
	if w.redis != nil {
		if err := w.pushRedis(ctx, w.redisQueueKey, task); err != nil {
			w.logger.Warn().Err(err).Msg("redis push failed, falling back to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
		return nil
	default:
		w.logger.Error().Str("task_id", task.ID).Msg("in-memory queue full, task dead lettered")
		w.pushDeadLetter(ctx, task)
		return errors.New("sheets queue full")
	}
}

// Start runs the consume loop until ctx is done.
func (w *SheetsWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("sheets worker started")
	defer w.logger.Info().Msg("sheets worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, t)
			continue
		}

		if w.redis == nil {
			select {
			case <-ctx.Done():
				return
			case t := <-w.queue:
				w.processTask(ctx, t)
			case <-time.After(w.pollInterval):
			}
		}
	}
}

func (w *SheetsWorker) tryLocalQueue() (SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return SyncTask{}, false
	}
}

func (w *SheetsWorker) tryRedis(ctx context.Context) (SyncTask, bool) {
	if w.redis == nil {
		return SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			w.logger.Error().Err(err).Msg("redis BRPOP failed")
			time.Sleep(w.pollInterval)
		}
		return SyncTask{}, false
	}
	if len(res) != 2 {
		return SyncTask{}, false
	}
	var task SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return SyncTask{}, false
	}
	return task, true
}

func (w *SheetsWorker) processTask(ctx context.Context, task SyncTask) {
	if err := w.handleSheetTask(ctx, task); err != nil {
		w.retryOrFail(task, err)
		return
	}
	metrics.IncSheets("done")
	w.logger.Debug().Str("task_id", task.ID).Str("type", task.Type).Msg("sheets task done")
}

func (w *SheetsWorker) handleSheetTask(ctx context.Context, task SyncTask) error {
	switch task.Type {
	case TaskAppendBooking:
		return w.sheets.AppendBooking(ctx, task.Booking)
	case TaskAppendContact:
		return w.sheets.AppendContact(ctx, task.Contact)
	default:
		return fmt.Errorf("unknown task type: %s", task.Type)
	}
}

func (w *SheetsWorker) retryOrFail(task SyncTask, cause error) {
	task.Attempt++
	task.LastError = cause.Error()

	if w.retryPolicy.Exhausted(task.Attempt) {
		metrics.IncSheets("dead")
		w.logger.Error().Err(cause).Str("task_id", task.ID).Int("attempt", task.Attempt).Msg("sheets task failed for good")
		w.pushDeadLetter(context.Background(), task)
		return
	}

	delay := w.retryPolicy.NextDelay(task.Attempt)
	metrics.IncSheets("retry")
	w.logger.Warn().Err(cause).Str("task_id", task.ID).Dur("delay", delay).Msg("sheets task will be retried")

	w.pending.Add(1)
	w.after(delay, func() {
		defer w.pending.Add(-1)
		if err := w.schedule(context.Background(), task); err != nil {
			w.logger.Error().Err(err).Str("task_id", task.ID).Msg("requeue failed")
		}
	})
}

// Pending is the number of retries waiting for their backoff delay.
func (w *SheetsWorker) Pending() int64 {
	return w.pending.Load()
}

// DeadLetters lists tasks that exhausted their retries, newest first.
func (w *SheetsWorker) DeadLetters(ctx context.Context) ([]SyncTask, error) {
	if w.redis == nil {
		return nil, nil
	}
	raw, err := w.redis.LRange(ctx, w.deadLetterKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read dead letters: %w", err)
	}
	out := make([]SyncTask, 0, len(raw))
	for _, r := range raw {
		var t SyncTask
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (w *SheetsWorker) pushRedis(ctx context.Context, key string, task SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}

func (w *SheetsWorker) pushDeadLetter(ctx context.Context, task SyncTask) {
	if w.redis == nil {
		return
	}
	if err := w.pushRedis(ctx, w.deadLetterKey, task); err != nil {
		w.logger.Error().Err(err).Str("task_id", task.ID).Msg("deadletter push failed")
	}
}
