package lookup

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/residence-finder/internal/enrich"
	"github.com/sells-group/residence-finder/internal/metrics"
	"github.com/sells-group/residence-finder/internal/model"
)

// KindDistance labels distance lookups.
const KindDistance = "distance"

// ErrNotSelected is returned when distances are requested for a residence that is not selected.
var ErrNotSelected = eris.New("lookup: residence is not selected")

// DistanceLookup holds driving distances for the selected residence only.
// Nothing is persisted; changing the selection discards everything, including
// results still in flight.
type DistanceLookup struct {
	cache    *Cache[model.DistancePair]
	enricher enrich.Enricher
	refs     enrich.References

	mu       sync.Mutex
	selected string
}

// NewDistanceLookup creates a session-scoped distance lookup.
func NewDistanceLookup(e enrich.Enricher, refs enrich.References, m *metrics.Collector) *DistanceLookup {
	return &DistanceLookup{
		cache:    NewCache[model.DistancePair](KindDistance, m, nil),
		enricher: e,
		refs:     refs,
	}
}

// References returns the reference points distances are measured to.
func (l *DistanceLookup) References() enrich.References { return l.refs }

// Select makes key the selected residence. Selecting a different key resets the lookup.
// An empty key clears the selection.
func (l *DistanceLookup) Select(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if key == l.selected {
		return
	}
	l.selected = key
	l.cache.Reset()
}

// Selected returns the selected key, or "".
func (l *DistanceLookup) Selected() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.selected
}

// Fetch returns distances for r, which must be selected. A result that arrives
// after the selection changed is discarded and ErrStale returned.
func (l *DistanceLookup) Fetch(ctx context.Context, r model.Residence) (model.DistancePair, error) {
	l.mu.Lock()
	selected, epoch := l.selected, l.cache.Epoch()
	l.mu.Unlock()
	if r.Name == "" || selected != r.Name {
		return model.DistancePair{}, ErrNotSelected
	}
	return l.cache.FetchAt(ctx, epoch, r.Name, func(ctx context.Context) (model.DistancePair, error) {
		d, err := l.enricher.Distances(ctx, r, l.refs)
		if err != nil {
			return model.DistancePair{}, userError(KindDistance, DistanceFailureMessage, err)
		}
		return d, nil
	})
}

// Current returns the selected key and the state of its distances.
func (l *DistanceLookup) Current() (string, Entry[model.DistancePair]) {
	key := l.Selected()
	if key == "" {
		return "", Entry[model.DistancePair]{}
	}
	return key, l.cache.Get(key)
}
