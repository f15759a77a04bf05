package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/residence-finder/internal/model"
)

// ErrBreakerOpen is returned without calling the provider while the breaker is open.
var ErrBreakerOpen = eris.New("enrich: provider unavailable, breaker open")

// BreakerState is the state of a Breaker.
type BreakerState int

const (
	// BreakerClosed lets every call through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the cooldown elapses.
	BreakerOpen
	// BreakerHalfOpen lets trial calls through after the cooldown.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls when a Breaker opens and recovers.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the breaker. Default: 5.
	Threshold int
	// Cooldown is how long the breaker stays open before a trial call. Default: 30s.
	Cooldown time.Duration
	// OnStateChange is called on every transition, with the breaker lock held.
	OnStateChange func(from, to BreakerState)
}

// Breaker wraps an Enricher and stops calling it after repeated failures, so
// an unreachable provider fails lookups immediately instead of after every
// retry and timeout.
type Breaker struct {
	next Enricher
	cfg  BreakerConfig

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
	now         func() time.Time
}

var _ Enricher = (*Breaker)(nil)

// NewBreaker wraps next.
func NewBreaker(next Enricher, cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{next: next, cfg: cfg, now: time.Now}
}

// Summarize implements Enricher.
func (b *Breaker) Summarize(ctx context.Context, r model.Residence) (model.Summary, error) {
	return guard(ctx, b, "summarize", func(ctx context.Context) (model.Summary, error) {
		return b.next.Summarize(ctx, r)
	})
}

// Distances implements Enricher.
func (b *Breaker) Distances(ctx context.Context, r model.Residence, refs References) (model.DistancePair, error) {
	return guard(ctx, b, "distances", func(ctx context.Context) (model.DistancePair, error) {
		return b.next.Distances(ctx, r, refs)
	})
}

// State returns the current state, reporting half-open once the cooldown has elapsed.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.lastFailure) >= b.cfg.Cooldown {
		return BreakerHalfOpen
	}
	return b.state
}

// Reset closes the breaker and clears the failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.transition(BreakerClosed)
}

func guard[T any](ctx context.Context, b *Breaker, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !b.allow() {
		zap.L().Debug("enrich: breaker rejected call",
			zap.String("operation", op),
			zap.String("correlation_id", CorrelationID(ctx)),
		)
		return zero, ErrBreakerOpen
	}
	v, err := fn(ctx)
	b.record(ctx, err)
	return v, err
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != BreakerOpen {
		return true
	}
	if b.now().Sub(b.lastFailure) >= b.cfg.Cooldown {
		b.transition(BreakerHalfOpen)
		return true
	}
	return false
}

// record counts err against the breaker. Schema errors and cancellations say
// nothing about provider health and are ignored.
func (b *Breaker) record(ctx context.Context, err error) {
	if err != nil && (eris.Is(err, ErrSchema) || ctx.Err() != nil) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		b.transition(BreakerClosed)
		return
	}

	b.failures++
	b.lastFailure = b.now()
	if b.state == BreakerHalfOpen || b.failures >= b.cfg.Threshold {
		b.transition(BreakerOpen)
	}
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	zap.L().Info("enrich: breaker state change",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}
