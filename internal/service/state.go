package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"advocat/internal/domain"
	"advocat/internal/models"

	"github.com/rs/zerolog"
)

// StateService reads and updates the persisted part of a visitor.
// Token and draft are written by different components; updates are
// read-modify-write under one lock so neither overwrites the other.
type StateService struct {
	stateRepo domain.StateRepository
	logger    *zerolog.Logger

	mu sync.Mutex
}

func NewStateService(stateRepo domain.StateRepository, logger *zerolog.Logger) *StateService {
	return &StateService{
		stateRepo: stateRepo,
		logger:    logger,
	}
}

// LoadState returns the stored state, or an empty state for an unknown visitor.
func (s *StateService) LoadState(ctx context.Context, visitorID string) (*models.VisitorState, error) {
	state, err := s.stateRepo.GetState(ctx, visitorID)
	if err != nil {
		s.logger.Error().Err(err).Str("visitor_id", visitorID).Msg("failed to get visitor state")
		return nil, err
	}
	if state == nil {
		state = &models.VisitorState{VisitorID: visitorID}
	}
	return state, nil
}

func (s *StateService) SaveToken(ctx context.Context, visitorID, token string) error {
	return s.update(ctx, visitorID, func(st *models.VisitorState) {
		st.Token = token
	})
}

func (s *StateService) ClearToken(ctx context.Context, visitorID string) error {
	return s.SaveToken(ctx, visitorID, "")
}

func (s *StateService) SaveDraft(ctx context.Context, visitorID string, draft models.BookingDraft) error {
	return s.update(ctx, visitorID, func(st *models.VisitorState) {
		st.Draft = draft
	})
}

// AllowSubmission counts one form post of kind for key and reports whether it
// stays within limit per window.
func (s *StateService) AllowSubmission(ctx context.Context, kind, key string, limit int, window time.Duration) (bool, error) {
	allowed, err := s.stateRepo.CheckRateLimit(ctx, kind+":"+key, limit, window)
	if err != nil {
		s.logger.Error().Err(err).Str("kind", kind).Msg("rate limit check failed")
		return false, err
	}
	return allowed, nil
}

func (s *StateService) update(ctx context.Context, visitorID string, apply func(*models.VisitorState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.LoadState(ctx, visitorID)
	if err != nil {
		return err
	}
	apply(state)

	if state.Token == "" && isEmptyDraft(state.Draft) {
		return s.stateRepo.ClearState(ctx, visitorID)
	}
	if err := s.stateRepo.SetState(ctx, state); err != nil {
		s.logger.Error().Err(err).Str("visitor_id", visitorID).Msg("failed to save visitor state")
		return fmt.Errorf("save visitor state: %w", err)
	}
	return nil
}

func isEmptyDraft(d models.BookingDraft) bool {
	return d == models.BookingDraft{}
}
