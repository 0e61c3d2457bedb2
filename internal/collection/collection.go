package collection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	DefaultLimit     = 3
	DefaultMinSearch = 2
)

var ErrSearchUnsupported = errors.New("collection: search not supported")

// PageFunc fetches up to limit items starting at offset.
type PageFunc[T any] func(ctx context.Context, limit, offset int) ([]T, error)

// SearchFunc returns every item matching term; search results are not paginated.
type SearchFunc[T any] func(ctx context.Context, term string) ([]T, error)

type Options struct {
	Limit     int
	MinSearch int
}

// State is a point in time copy of a collection, safe to serialize.
type State[T any] struct {
	Items       []T    `json:"items"`
	Offset      int    `json:"offset"`
	Limit       int    `json:"limit"`
	HasMore     bool   `json:"hasMore"`
	IsSearching bool   `json:"isSearching"`
	SearchTerm  string `json:"searchTerm"`
	Loading     bool   `json:"loading"`
}

// Collection is a paginated, searchable, lazily loaded list backed by remote calls.
// Requests are serialized; a lazy load arriving while another request runs is dropped.
type Collection[T any] struct {
	name   string
	fetch  PageFunc[T]
	search SearchFunc[T]
	logger zerolog.Logger

	// inflight is held for the whole duration of a remote request.
	inflight sync.Mutex

	mu          sync.Mutex
	items       []T
	offset      int
	limit       int
	minSearch   int
	hasMore     bool
	isSearching bool
	searchTerm  string
	loading     bool
}

func New[T any](name string, fetch PageFunc[T], search SearchFunc[T], opts Options, logger zerolog.Logger) *Collection[T] {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.MinSearch <= 0 {
		opts.MinSearch = DefaultMinSearch
	}
	return &Collection[T]{
		name:      name,
		fetch:     fetch,
		search:    search,
		logger:    logger.With().Str("collection", name).Logger(),
		items:     []T{},
		limit:     opts.Limit,
		minSearch: opts.MinSearch,
		hasMore:   true,
	}
}

// Load fetches a page. With appendPage it continues from the current offset,
// otherwise it starts again from the first page and replaces the items.
func (c *Collection[T]) Load(ctx context.Context, appendPage bool) error {
	c.inflight.Lock()
	defer c.inflight.Unlock()
	return c.load(ctx, appendPage)
}

// LazyLoad appends the next page unless a request is running, the list is
// exhausted or a search is displayed. It reports whether a page was requested.
func (c *Collection[T]) LazyLoad(ctx context.Context) (bool, error) {
	if !c.inflight.TryLock() {
		return false, nil
	}
	defer c.inflight.Unlock()

	c.mu.Lock()
	skip := c.loading || !c.hasMore || c.isSearching
	c.mu.Unlock()
	if skip {
		return false, nil
	}
	return true, c.load(ctx, true)
}

// Search replaces the items with search results. A blank term goes back to the
// first page; a term shorter than the minimum length is ignored.
func (c *Collection[T]) Search(ctx context.Context, term string) error {
	c.inflight.Lock()
	defer c.inflight.Unlock()

	trimmed := strings.TrimSpace(term)
	if trimmed == "" {
		c.mu.Lock()
		c.searchTerm = term
		c.isSearching = false
		c.offset = 0
		c.hasMore = true
		c.mu.Unlock()
		return c.load(ctx, false)
	}

	if utf8.RuneCountInString(trimmed) < c.minSearch {
		return nil
	}
	if c.search == nil {
		return ErrSearchUnsupported
	}

	c.mu.Lock()
	c.loading = true
	c.isSearching = true
	c.searchTerm = term
	c.mu.Unlock()

	results, err := c.search(ctx, trimmed)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.items = []T{}
		c.logger.Error().Err(err).Str("term", trimmed).Msg("search failed")
		return fmt.Errorf("%s: search: %w", c.name, err)
	}
	if results == nil {
		results = []T{}
	}
	c.items = results
	c.hasMore = false
	return nil
}

// Reset clears any search and reloads the first page.
func (c *Collection[T]) Reset(ctx context.Context) error {
	c.inflight.Lock()
	defer c.inflight.Unlock()

	c.mu.Lock()
	c.offset = 0
	c.hasMore = true
	c.searchTerm = ""
	c.isSearching = false
	c.mu.Unlock()

	return c.load(ctx, false)
}

// Prepend puts a freshly created item in front of the loaded ones.
func (c *Collection[T]) Prepend(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]T{item}, c.items...)
}

// Remove drops loaded items matching pred and reports how many were removed.
func (c *Collection[T]) Remove(pred func(T) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.items[:0:0]
	for _, it := range c.items {
		if !pred(it) {
			kept = append(kept, it)
		}
	}
	removed := len(c.items) - len(kept)
	c.items = kept
	return removed
}

// Replace swaps the first loaded item matching pred with item.
func (c *Collection[T]) Replace(pred func(T) bool, item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, it := range c.items {
		if pred(it) {
			c.items[i] = item
			return true
		}
	}
	return false
}

func (c *Collection[T]) Snapshot() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]T, len(c.items))
	copy(items, c.items)
	return State[T]{
		Items:       items,
		Offset:      c.offset,
		Limit:       c.limit,
		HasMore:     c.hasMore,
		IsSearching: c.isSearching,
		SearchTerm:  c.searchTerm,
		Loading:     c.loading,
	}
}

// load must be called with inflight held.
func (c *Collection[T]) load(ctx context.Context, appendPage bool) error {
	c.mu.Lock()
	offset := 0
	if appendPage {
		offset = c.offset
	}
	limit := c.limit
	c.loading = true
	c.mu.Unlock()

	page, err := c.fetch(ctx, limit, offset)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.logger.Error().Err(err).Int("offset", offset).Msg("load failed")
		return fmt.Errorf("%s: load: %w", c.name, err)
	}
	if page == nil {
		page = []T{}
	}

	if appendPage {
		c.items = append(c.items, page...)
		c.offset += len(page)
	} else {
		c.items = page
		c.offset = len(page)
		c.hasMore = true
	}
	if len(page) < limit {
		c.hasMore = false
	}
	return nil
}
