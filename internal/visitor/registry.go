package visitor

import (
	"context"
	"sync"
	"time"

	"advocat/internal/collection"
	"advocat/internal/domain"
	"advocat/internal/metrics"
	"advocat/internal/models"
	"advocat/internal/remote"
	"advocat/internal/service"

	"github.com/rs/zerolog"
)

// Registry keeps the visitors currently in memory, keyed by cookie id.
type Registry struct {
	base     *remote.Client
	state    *service.StateService
	eventBus domain.EventPublisher
	opts     collection.Options
	idleTTL  time.Duration
	logger   *zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	visitors map[string]*Visitor
}

func NewRegistry(
	base *remote.Client,
	state *service.StateService,
	eventBus domain.EventPublisher,
	opts collection.Options,
	idleTTL time.Duration,
	logger *zerolog.Logger,
) *Registry {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Registry{
		base:     base,
		state:    state,
		eventBus: eventBus,
		opts:     opts,
		idleTTL:  idleTTL,
		logger:   logger,
		now:      time.Now,
		visitors: make(map[string]*Visitor),
	}
}

// Get returns the visitor for id, creating it on first sight. A new visitor
// gets its persisted token and booking draft back; concurrent callers for
// the same id wait until that is done.
func (r *Registry) Get(ctx context.Context, id string) *Visitor {
	r.mu.Lock()
	v, ok := r.visitors[id]
	if !ok {
		v = r.newVisitor(id)
		r.visitors[id] = v
		metrics.SetVisitors(len(r.visitors))
	}
	r.mu.Unlock()

	v.touch(r.now())
	if !ok {
		r.restore(context.WithoutCancel(ctx), v)
		close(v.ready)
		return v
	}
	select {
	case <-v.ready:
	case <-ctx.Done():
	}
	return v
}

// Peek returns a visitor without creating it.
func (r *Registry) Peek(id string) (*Visitor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.visitors[id]
	return v, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visitors)
}

func (r *Registry) newVisitor(id string) *Visitor {
	logger := r.logger.With().Str("visitor_id", id).Logger()
	sess := service.NewSession(id, r.state, r.logger)
	api := r.base.WithAuth(sess)
	sess.Bind(api)

	return &Visitor{
		ID:           id,
		Session:      sess,
		Booking:      service.NewBookingWizard(id, api, r.state, r.eventBus, r.logger),
		Remote:       api,
		Testimonials: collection.New[models.Testimonial]("testimonials", api.Testimonials, nil, r.opts, logger),
		opts:         r.opts,
		logger:       logger,
		ready:        make(chan struct{}),
	}
}

func (r *Registry) restore(ctx context.Context, v *Visitor) {
	if r.state == nil {
		return
	}
	st, err := r.state.LoadState(ctx, v.ID)
	if err != nil {
		r.logger.Warn().Err(err).Str("visitor_id", v.ID).Msg("visitor state not restored")
		return
	}
	v.Session.Restore(st.Token)
	v.Booking.Restore(st.Draft)
}

// Evict drops visitors idle for longer than the idle TTL. Their persisted
// state stays in the state repository.
func (r *Registry) Evict() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, v := range r.visitors {
		if v.LastSeen().Before(cutoff) {
			delete(r.visitors, id)
			evicted++
		}
	}
	metrics.SetVisitors(len(r.visitors))
	return evicted
}

// RunJanitor evicts idle visitors every interval until ctx is done.
func (r *Registry) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Evict(); n > 0 {
				r.logger.Debug().Int("evicted", n).Msg("idle visitors evicted")
			}
		}
	}
}
