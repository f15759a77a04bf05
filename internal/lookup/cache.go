// Package lookup caches on-demand enrichment results per residence, tracking
// whether each key is empty, loading, ready or failed.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/residence-finder/internal/enrich"
	"github.com/sells-group/residence-finder/internal/metrics"
)

// State of one cache key.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateEmpty, StateLoading, StateReady, StateFailed} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return eris.Errorf("lookup: unknown state %q", text)
}

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrStale is returned by Fetch when the cache was reset while the load was in flight.
// The loaded value is discarded.
var ErrStale = eris.New("lookup: result discarded after reset")

// Entry is the observable state of one key.
type Entry[V any] struct {
	State State `json:"state"`
	Value V     `json:"value,omitempty"`
	Err   error `json:"-"`
}

// DefaultLoadTimeout bounds one loader call. Loads run detached from the
// caller's context so a caller giving up does not fail the others waiting on it.
const DefaultLoadTimeout = 2 * time.Minute

// errSuperseded tells a late joiner that the flight it saw has been replaced by a newer one.
var errSuperseded = errors.New("lookup: flight superseded")

// LoadFunc performs the external call for one key.
type LoadFunc[V any] func(ctx context.Context) (V, error)

// PersistFunc receives every ready value after each successful load.
type PersistFunc[V any] func(ctx context.Context, ready map[string]V) error

// Cache is a keyed lookup cache. Ready keys are served without calling the loader,
// and concurrent fetches of a loading key share one loader call.
type Cache[V any] struct {
	kind    string
	metrics *metrics.Collector
	persist PersistFunc[V]

	mu      sync.Mutex
	entries map[string]Entry[V]
	epoch   uint64
	// flights holds the id of the latest load started for each key.
	flights map[string]uint64
	seq     uint64

	loadTimeout time.Duration

	persistMu sync.Mutex
	group     singleflight.Group
}

// NewCache creates an empty cache. kind labels logs and metrics.
func NewCache[V any](kind string, m *metrics.Collector, persist PersistFunc[V]) *Cache[V] {
	return &Cache[V]{
		kind:    kind,
		metrics: m,
		persist: persist,
		entries:     make(map[string]Entry[V]),
		flights:     make(map[string]uint64),
		loadTimeout: DefaultLoadTimeout,
	}
}

// Seed marks every value in ready as Ready without persisting.
func (c *Cache[V]) Seed(ready map[string]V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range ready {
		c.entries[k] = Entry[V]{State: StateReady, Value: v}
	}
}

// Get returns the state of key.
func (c *Cache[V]) Get(key string) Entry[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key]
}

// Ready returns a copy of every ready value.
func (c *Cache[V]) Ready() map[string]V {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readyLocked()
}

func (c *Cache[V]) readyLocked() map[string]V {
	out := make(map[string]V, len(c.entries))
	for k, e := range c.entries {
		if e.State == StateReady {
			out[k] = e.Value
		}
	}
	return out
}

// Delete returns key to Empty.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Reset returns every key to Empty. Loads in flight at the time of the reset
// finish with ErrStale and leave no trace.
func (c *Cache[V]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry[V])
	c.flights = make(map[string]uint64)
	c.epoch++
}

// Fetch returns key's value, loading it with load when the key is Empty or Failed.
// A Ready key returns immediately. A Loading key waits for the in-flight call.
// If ctx ends first, Fetch returns ctx.Err() and the load carries on for the
// other callers.
func (c *Cache[V]) Fetch(ctx context.Context, key string, load LoadFunc[V]) (V, error) {
	c.mu.Lock()
	return c.fetchLocked(ctx, key, load)
}

// FetchAt is Fetch pinned to the epoch returned by Epoch. If the cache has been
// reset since, it returns ErrStale without loading.
func (c *Cache[V]) FetchAt(ctx context.Context, epoch uint64, key string, load LoadFunc[V]) (V, error) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		var zero V
		return zero, ErrStale
	}
	return c.fetchLocked(ctx, key, load)
}

// Epoch identifies the current generation; Reset advances it.
func (c *Cache[V]) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// fetchLocked is called with c.mu held and releases it.
func (c *Cache[V]) fetchLocked(ctx context.Context, key string, load LoadFunc[V]) (V, error) {
	e := c.entries[key]
	switch e.State {
	case StateReady:
		c.mu.Unlock()
		c.metrics.ObserveLookup(c.kind, metrics.OutcomeHit)
		return e.Value, nil
	case StateLoading:
		c.metrics.ObserveLookup(c.kind, metrics.OutcomeJoined)
	default:
		c.seq++
		c.flights[key] = c.seq
		c.entries[key] = Entry[V]{State: StateLoading}
	}
	epoch, flight := c.epoch, c.flights[key]
	c.mu.Unlock()

	return c.join(ctx, key, epoch, flight, load)
}

// join waits for flight to finish, or for ctx to end.
func (c *Cache[V]) join(ctx context.Context, key string, epoch, flight uint64, load LoadFunc[V]) (V, error) {
	var zero V
	flightKey := fmt.Sprintf("%d/%s/%d", epoch, key, flight)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		return c.load(lctx, key, epoch, flight, load)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if errors.Is(res.Err, errSuperseded) {
			c.mu.Lock()
			return c.fetchLocked(ctx, key, load)
		}
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

// load runs inside the singleflight group. A caller that saw flight as Loading
// may only get here after it finished; it then takes that flight's outcome
// instead of making a second external call.
func (c *Cache[V]) load(ctx context.Context, key string, epoch, flight uint64, load LoadFunc[V]) (v V, err error) {
	c.mu.Lock()
	e := c.entries[key]
	switch {
	case c.epoch != epoch:
		c.mu.Unlock()
		return v, ErrStale
	case c.flights[key] != flight || e.State != StateLoading:
		c.mu.Unlock()
		switch e.State {
		case StateReady:
			return e.Value, nil
		case StateFailed:
			return v, e.Err
		case StateLoading:
			return v, errSuperseded
		default:
			return v, ErrStale
		}
	}
	c.mu.Unlock()

	id := uuid.NewString()
	log := zap.L().With(
		zap.String("kind", c.kind),
		zap.String("key", key),
		zap.String("correlation_id", id),
	)
	log.Debug("lookup: loading")

	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("lookup: %s loader panicked: %v", c.kind, r)
			c.finish(ctx, log, key, epoch, flight, v, err)
		}
	}()

	start := time.Now()
	v, err = load(enrich.WithCorrelationID(ctx, id))
	c.metrics.ObserveLookupDuration(c.kind, time.Since(start))

	return c.finish(ctx, log, key, epoch, flight, v, err)
}

// finish records the outcome of a load unless the cache was reset meanwhile.
// A flight superseded after a Delete returns its outcome without recording it.
func (c *Cache[V]) finish(ctx context.Context, log *zap.Logger, key string, epoch, flight uint64, v V, err error) (V, error) {
	var zero V

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		c.metrics.ObserveLookup(c.kind, metrics.OutcomeStale)
		log.Debug("lookup: discarding stale result")
		return zero, ErrStale
	}
	if c.flights[key] != flight {
		c.mu.Unlock()
		log.Debug("lookup: newer flight owns key, not recording")
		return v, err
	}
	if err != nil {
		c.entries[key] = Entry[V]{State: StateFailed, Err: err}
		c.mu.Unlock()
		c.metrics.ObserveLookup(c.kind, metrics.OutcomeFailure)
		log.Warn("lookup: load failed", zap.Error(err))
		return zero, err
	}
	c.entries[key] = Entry[V]{State: StateReady, Value: v}
	c.mu.Unlock()

	c.metrics.ObserveLookup(c.kind, metrics.OutcomeSuccess)
	log.Debug("lookup: loaded")
	c.save(ctx)
	return v, nil
}

// save hands the current ready set to the persist hook. Failures are logged;
// the value is already usable in memory.
func (c *Cache[V]) save(ctx context.Context) {
	if c.persist == nil {
		return
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	ready := c.readyLocked()
	c.mu.Unlock()

	if err := c.persist(ctx, ready); err != nil {
		zap.L().Error("lookup: persist failed", zap.String("kind", c.kind), zap.Error(err))
	}
}

// Persist writes the current ready set immediately, returning any error.
func (c *Cache[V]) Persist(ctx context.Context) error {
	if c.persist == nil {
		return nil
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	return c.persist(ctx, c.Ready())
}
