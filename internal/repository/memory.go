package repository

import (
	"context"
	"sync"
	"time"

	"advocat/internal/models"
)

type memoryEntry struct {
	state     models.VisitorState
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryStateRepository keeps state in process. Stored values are copies.
type MemoryStateRepository struct {
	mu         sync.Mutex
	states     map[string]memoryEntry
	rateLimits map[string]*rateLimitEntry
	ttl        time.Duration
	now        func() time.Time
}

func NewMemoryStateRepository(ttl time.Duration) *MemoryStateRepository {
	return &MemoryStateRepository{
		states:     make(map[string]memoryEntry),
		rateLimits: make(map[string]*rateLimitEntry),
		ttl:        ttl,
		now:        time.Now,
	}
}

func (r *MemoryStateRepository) GetState(_ context.Context, visitorID string) (*models.VisitorState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.states[visitorID]
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.IsZero() && r.now().After(e.expiresAt) {
		delete(r.states, visitorID)
		return nil, nil
	}
	st := e.state
	return &st, nil
}

func (r *MemoryStateRepository) SetState(_ context.Context, state *models.VisitorState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := memoryEntry{state: *state}
	if r.ttl > 0 {
		e.expiresAt = r.now().Add(r.ttl)
	}
	r.states[state.VisitorID] = e
	return nil
}

func (r *MemoryStateRepository) ClearState(_ context.Context, visitorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, visitorID)
	return nil
}

func (r *MemoryStateRepository) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{count: 0, expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	}
	entry.count++
	return entry.count <= limit, nil
}
