package collection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pager serves ints 0..total-1 and records every call.
type pager struct {
	mu       sync.Mutex
	total    int
	calls    []int
	searches []string
	err      error
	block    chan struct{}
}

func (p *pager) fetch(ctx context.Context, limit, offset int) ([]int, error) {
	p.mu.Lock()
	p.calls = append(p.calls, offset)
	block := p.block
	err := p.err
	p.mu.Unlock()
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	var out []int
	for i := offset; i < offset+limit && i < p.total; i++ {
		out = append(out, i)
	}
	return out, nil
}

func (p *pager) search(ctx context.Context, term string) ([]int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.searches = append(p.searches, term)
	if p.err != nil {
		return nil, p.err
	}
	return []int{42}, nil
}

func newInts(p *pager) *Collection[int] {
	return New[int]("ints", p.fetch, p.search, Options{}, zerolog.Nop())
}

func TestLoadStopsOnShortPage(t *testing.T) {
	p := &pager{total: 7}
	c := newInts(p)
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, false))
	assert.Equal(t, []int{0, 1, 2}, c.Snapshot().Items)
	assert.True(t, c.Snapshot().HasMore)

	requested, err := c.LazyLoad(ctx)
	require.NoError(t, err)
	assert.True(t, requested)
	requested, err = c.LazyLoad(ctx)
	require.NoError(t, err)
	assert.True(t, requested)

	st := c.Snapshot()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, st.Items)
	assert.Equal(t, 7, st.Offset)
	assert.False(t, st.HasMore)

	requested, err = c.LazyLoad(ctx)
	require.NoError(t, err)
	assert.False(t, requested, "exhausted list must not fetch")
	assert.Equal(t, []int{0, 3, 6}, p.calls)
}

func TestLoadWithoutAppendRestartsFromFirstPage(t *testing.T) {
	p := &pager{total: 3}
	c := newInts(p)
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, false))
	_, _ = c.LazyLoad(ctx)
	require.False(t, c.Snapshot().HasMore)

	p.total = 10
	require.NoError(t, c.Load(ctx, false))
	st := c.Snapshot()
	assert.Equal(t, []int{0, 1, 2}, st.Items)
	assert.Equal(t, 3, st.Offset)
	assert.True(t, st.HasMore)
	assert.Equal(t, 0, p.calls[len(p.calls)-1])
}

func TestSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("ShortTermIsNoop", func(t *testing.T) {
		p := &pager{total: 5}
		c := newInts(p)
		require.NoError(t, c.Load(ctx, false))

		require.NoError(t, c.Search(ctx, " a "))
		assert.Empty(t, p.searches)
		assert.False(t, c.Snapshot().IsSearching)
		assert.Len(t, p.calls, 1)
	})

	t.Run("ResultsReplaceItems", func(t *testing.T) {
		p := &pager{total: 5}
		c := newInts(p)
		require.NoError(t, c.Load(ctx, false))

		require.NoError(t, c.Search(ctx, "dupont"))
		st := c.Snapshot()
		assert.Equal(t, []int{42}, st.Items)
		assert.True(t, st.IsSearching)
		assert.False(t, st.HasMore)
		assert.Equal(t, "dupont", st.SearchTerm)

		requested, err := c.LazyLoad(ctx)
		require.NoError(t, err)
		assert.False(t, requested, "no lazy load while searching")
	})

	t.Run("EmptyTermGoesBackToList", func(t *testing.T) {
		p := &pager{total: 5}
		c := newInts(p)
		require.NoError(t, c.Search(ctx, "dupont"))

		require.NoError(t, c.Search(ctx, "   "))
		st := c.Snapshot()
		assert.False(t, st.IsSearching)
		assert.Equal(t, []int{0, 1, 2}, st.Items)
		assert.True(t, st.HasMore)
	})

	t.Run("FailureEmptiesItems", func(t *testing.T) {
		p := &pager{total: 5}
		c := newInts(p)
		require.NoError(t, c.Load(ctx, false))
		p.err = errors.New("boom")

		err := c.Search(ctx, "dupont")
		assert.Error(t, err)
		st := c.Snapshot()
		assert.Empty(t, st.Items)
		assert.NotNil(t, st.Items)
		assert.False(t, st.Loading)
	})

	t.Run("Unsupported", func(t *testing.T) {
		c := New[int]("nosearch", (&pager{}).fetch, nil, Options{}, zerolog.Nop())
		assert.ErrorIs(t, c.Search(ctx, "abc"), ErrSearchUnsupported)
	})
}

func TestReset(t *testing.T) {
	p := &pager{total: 5}
	c := newInts(p)
	ctx := context.Background()

	require.NoError(t, c.Search(ctx, "dupont"))
	require.NoError(t, c.Reset(ctx))

	st := c.Snapshot()
	assert.Equal(t, "", st.SearchTerm)
	assert.False(t, st.IsSearching)
	assert.Equal(t, []int{0, 1, 2}, st.Items)
}

func TestLazyLoadSkippedWhileLoading(t *testing.T) {
	p := &pager{total: 9, block: make(chan struct{})}
	c := newInts(p)
	ctx := context.Background()

	done := make(chan error)
	go func() { done <- c.Load(ctx, false) }()

	require.Eventually(t, func() bool { return c.Snapshot().Loading }, time.Second, time.Millisecond)

	requested, err := c.LazyLoad(ctx)
	require.NoError(t, err)
	assert.False(t, requested)

	close(p.block)
	require.NoError(t, <-done)
	assert.Len(t, p.calls, 1)
}

func TestLoadErrorKeepsItems(t *testing.T) {
	p := &pager{total: 9}
	c := newInts(p)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx, false))

	p.err = errors.New("down")
	_, err := c.LazyLoad(ctx)
	assert.Error(t, err)

	st := c.Snapshot()
	assert.Equal(t, []int{0, 1, 2}, st.Items)
	assert.False(t, st.Loading)
	assert.True(t, st.HasMore)
}

func TestPrependRemoveReplace(t *testing.T) {
	p := &pager{total: 2}
	c := newInts(p)
	require.NoError(t, c.Load(context.Background(), false))

	c.Prepend(99)
	assert.Equal(t, []int{99, 0, 1}, c.Snapshot().Items)

	assert.True(t, c.Replace(func(v int) bool { return v == 0 }, 7))
	assert.Equal(t, 1, c.Remove(func(v int) bool { return v == 99 }))
	assert.Equal(t, []int{7, 1}, c.Snapshot().Items)
}

func TestCustomLimit(t *testing.T) {
	p := &pager{total: 10}
	c := New[int]("ints", p.fetch, nil, Options{Limit: 4}, zerolog.Nop())
	require.NoError(t, c.Load(context.Background(), false))
	assert.Len(t, c.Snapshot().Items, 4)
	assert.Equal(t, 4, c.Snapshot().Limit)
}

func TestList(t *testing.T) {
	calls := 0
	var fail bool
	l := NewList[int]("staff", func(ctx context.Context) ([]int, error) {
		calls++
		if fail {
			return nil, errors.New("down")
		}
		return []int{1, 2, 3, 4}, nil
	}, 0, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, l.Ensure(ctx))
	require.NoError(t, l.Ensure(ctx))
	assert.Equal(t, 1, calls)
	assert.Equal(t, []int{2, 4}, l.Filter(func(v int) bool { return v%2 == 0 }))

	fail = true
	assert.Error(t, l.Refresh(ctx))
	assert.Equal(t, []int{1, 2, 3, 4}, l.Items())
	assert.False(t, l.Loading())
}

func TestList_EnsureReloadsStaleItems(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	remote := []int{1}
	calls := 0
	l := NewList[int]("categories", func(ctx context.Context) ([]int, error) {
		calls++
		return remote, nil
	}, time.Minute, zerolog.Nop())
	l.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, l.Ensure(ctx))
	assert.Equal(t, []int{1}, l.Items())

	remote = []int{1, 2}
	now = now.Add(30 * time.Second)
	require.NoError(t, l.Ensure(ctx))
	assert.Equal(t, 1, calls)
	assert.Equal(t, []int{1}, l.Items())

	now = now.Add(31 * time.Second)
	require.NoError(t, l.Ensure(ctx))
	assert.Equal(t, 2, calls)
	assert.Equal(t, []int{1, 2}, l.Items())
}

func TestList_EnsureServesStaleWhileRefreshing(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var calls atomic.Int32
	l := NewList[int]("staff", func(ctx context.Context) ([]int, error) {
		if calls.Add(1) == 2 {
			started <- struct{}{}
			<-release
			return []int{7, 8}, nil
		}
		return []int{7}, nil
	}, time.Minute, zerolog.Nop())
	var clock sync.Mutex
	l.now = func() time.Time {
		clock.Lock()
		defer clock.Unlock()
		return now
	}
	ctx := context.Background()
	require.NoError(t, l.Ensure(ctx))

	clock.Lock()
	now = now.Add(2 * time.Minute)
	clock.Unlock()

	done := make(chan error, 1)
	go func() { done <- l.Ensure(ctx) }()
	<-started

	require.NoError(t, l.Ensure(ctx))
	assert.Equal(t, []int{7}, l.Items())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, []int{7, 8}, l.Items())
	assert.Equal(t, int32(2), calls.Load())
}

func TestDrain(t *testing.T) {
	p := &pager{total: 7}
	all, err := Drain[int](context.Background(), p.fetch, 3)
	require.NoError(t, err)
	assert.Len(t, all, 7)
	assert.Equal(t, []int{0, 3, 6}, p.calls)

	p = &pager{total: 6}
	all, err = Drain[int](context.Background(), p.fetch, 3)
	require.NoError(t, err)
	assert.Len(t, all, 6)
	assert.Equal(t, []int{0, 3, 6}, p.calls)
}

func TestDrain_AdvancesByReturnedItems(t *testing.T) {
	var offsets []int
	fetch := func(ctx context.Context, limit, offset int) ([]int, error) {
		offsets = append(offsets, offset)
		// the server caps pages at 2 regardless of the requested limit
		var out []int
		for i := offset; i < offset+2 && i < 5; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	all, err := Drain[int](context.Background(), fetch, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, all)
	assert.Equal(t, []int{0, 2, 4}, offsets)

	offsets = nil
	big := func(ctx context.Context, limit, offset int) ([]int, error) {
		offsets = append(offsets, offset)
		// returns more than asked for
		var out []int
		for i := offset; i < offset+4 && i < 6; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	all, err = Drain[int](context.Background(), big, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, all)
	assert.Equal(t, []int{0, 4}, offsets)
}
