package lookup

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/residence-finder/internal/enrich"
	"github.com/sells-group/residence-finder/internal/metrics"
	"github.com/sells-group/residence-finder/internal/model"
	"github.com/sells-group/residence-finder/internal/store"
)

// KindSummary labels summary lookups.
const KindSummary = "summary"

// SummaryLookup caches AI summaries per residence name and persists every
// ready summary under store.KeySummaries.
type SummaryLookup struct {
	cache    *Cache[model.Summary]
	enricher enrich.Enricher
	kv       store.Store
}

// NewSummaryLookup loads persisted summaries from kv as Ready entries. A missing
// or corrupt value starts the cache empty.
func NewSummaryLookup(ctx context.Context, kv store.Store, e enrich.Enricher, m *metrics.Collector) *SummaryLookup {
	l := &SummaryLookup{enricher: e, kv: kv}
	l.cache = NewCache[model.Summary](KindSummary, m, l.persist)

	data, err := kv.Get(ctx, store.KeySummaries)
	switch {
	case err != nil:
		zap.L().Warn("lookup: read summaries failed, starting empty", zap.Error(err))
	case len(data) > 0:
		var saved map[string]model.Summary
		if err := json.Unmarshal(data, &saved); err != nil {
			zap.L().Warn("lookup: corrupt summaries, starting empty", zap.Error(err))
			break
		}
		for k, s := range saved {
			saved[k] = s.Clamp()
		}
		l.cache.Seed(saved)
	}
	return l
}

func (l *SummaryLookup) persist(ctx context.Context, ready map[string]model.Summary) error {
	data, err := json.Marshal(ready)
	if err != nil {
		return eris.Wrap(err, "lookup: marshal summaries")
	}
	return eris.Wrap(l.kv.Set(ctx, store.KeySummaries, data), "lookup: persist summaries")
}

// Fetch returns r's summary, asking the enricher only when none is cached.
// Ratings are clamped to 1..5. Failures carry SummaryFailureMessage.
func (l *SummaryLookup) Fetch(ctx context.Context, r model.Residence) (model.Summary, error) {
	s, err := l.cache.Fetch(ctx, r.Name, func(ctx context.Context) (model.Summary, error) {
		s, err := l.enricher.Summarize(ctx, r)
		if err != nil {
			return model.Summary{}, userError(KindSummary, SummaryFailureMessage, err)
		}
		return s.Clamp(), nil
	})
	return s, err
}

// Get returns the state of the summary for key.
func (l *SummaryLookup) Get(key string) Entry[model.Summary] {
	return l.cache.Get(key)
}

// All returns every ready summary.
func (l *SummaryLookup) All() map[string]model.Summary {
	return l.cache.Ready()
}

// Invalidate drops key's summary and persists the remaining set.
func (l *SummaryLookup) Invalidate(ctx context.Context, key string) error {
	l.cache.Delete(key)
	return l.cache.Persist(ctx)
}
