package collection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// List is a non paginated remote list, refreshed as a whole. Items older
// than maxAge are fetched again on the next Ensure; zero means never.
type List[T any] struct {
	name   string
	fetch  func(ctx context.Context) ([]T, error)
	maxAge time.Duration
	logger zerolog.Logger
	now    func() time.Time

	// refreshing is held for the whole duration of a fetch.
	refreshing sync.Mutex

	mu        sync.RWMutex
	items     []T
	loaded    bool
	loading   bool
	fetchedAt time.Time
}

func NewList[T any](name string, fetch func(ctx context.Context) ([]T, error), maxAge time.Duration, logger zerolog.Logger) *List[T] {
	return &List[T]{
		name:   name,
		fetch:  fetch,
		maxAge: maxAge,
		logger: logger.With().Str("list", name).Logger(),
		now:    time.Now,
		items:  []T{},
	}
}

// Refresh reloads the list. On failure the previous items are kept.
func (l *List[T]) Refresh(ctx context.Context) error {
	l.refreshing.Lock()
	defer l.refreshing.Unlock()
	return l.refresh(ctx)
}

func (l *List[T]) refresh(ctx context.Context) error {
	l.mu.Lock()
	l.loading = true
	l.mu.Unlock()

	items, err := l.fetch(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false
	if err != nil {
		l.logger.Error().Err(err).Msg("refresh failed")
		return fmt.Errorf("%s: refresh: %w", l.name, err)
	}
	if items == nil {
		items = []T{}
	}
	l.items = items
	l.loaded = true
	l.fetchedAt = l.now()
	return nil
}

// Ensure refreshes a list that was never loaded or has gone stale. While
// another caller refreshes a loaded list, the current items are served.
func (l *List[T]) Ensure(ctx context.Context) error {
	loaded, stale := l.state()
	if !stale {
		return nil
	}
	if loaded {
		if !l.refreshing.TryLock() {
			return nil
		}
	} else {
		l.refreshing.Lock()
	}
	defer l.refreshing.Unlock()

	if _, stale := l.state(); !stale {
		return nil
	}
	return l.refresh(ctx)
}

func (l *List[T]) state() (loaded, stale bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.loaded {
		return false, true
	}
	return true, l.maxAge > 0 && l.now().Sub(l.fetchedAt) >= l.maxAge
}

func (l *List[T]) Items() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Filter returns the loaded items for which keep is true.
func (l *List[T]) Filter(keep func(T) bool) []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := []T{}
	for _, it := range l.items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

func (l *List[T]) Loading() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loading
}
