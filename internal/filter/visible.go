package filter

import (
	"maps"
	"slices"
	"sync"

	"github.com/sells-group/residence-finder/internal/annotation"
	"github.com/sells-group/residence-finder/internal/model"
)

// Enrich returns a copy of dataset with each residence's note attached.
func Enrich(dataset []model.Residence, notes map[string]string) []model.Residence {
	out := make([]model.Residence, len(dataset))
	for i, r := range dataset {
		r.Notes = notes[r.Name]
		out[i] = r
	}
	return out
}

// ComputeVisible returns the residences passing cfg, in dataset order, carrying their notes.
// Pure: identical inputs always give an identical result.
func ComputeVisible(dataset []model.Residence, ann annotation.Snapshot, cfg Config) []model.Residence {
	out := make([]model.Residence, 0, len(dataset))
	for _, r := range Enrich(dataset, ann.Notes) {
		if Matches(r, cfg, ann.Favorites) {
			out = append(out, r)
		}
	}
	return out
}

// Pipeline memoizes ComputeVisible over a fixed dataset. A call whose relevant
// inputs equal the previous call's returns the previous result without recomputing.
// Favorites only count as an input while favorites-only is on.
type Pipeline struct {
	dataset []model.Residence

	mu        sync.Mutex
	primed    bool
	lastCfg   Config
	lastNotes map[string]string
	lastFavs  model.StringSet
	last      []model.Residence
	computes  int
}

// NewPipeline creates a Pipeline over dataset. The dataset must not be modified afterwards.
func NewPipeline(dataset []model.Residence) *Pipeline {
	return &Pipeline{dataset: dataset}
}

// Dataset returns the underlying dataset.
func (p *Pipeline) Dataset() []model.Residence { return p.dataset }

// Visible returns the visible residences for ann and cfg. The returned slice is the caller's.
func (p *Pipeline) Visible(ann annotation.Snapshot, cfg Config) []model.Residence {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.primed && p.sameInputs(ann, cfg) {
		return slices.Clone(p.last)
	}

	p.last = ComputeVisible(p.dataset, ann, cfg)
	p.lastCfg = cfg.Clone()
	p.lastNotes = ann.Notes
	p.lastFavs = ann.Favorites
	p.primed = true
	p.computes++
	return slices.Clone(p.last)
}

// Computations returns how many times the result set was actually recomputed.
func (p *Pipeline) Computations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.computes
}

func (p *Pipeline) sameInputs(ann annotation.Snapshot, cfg Config) bool {
	if !p.lastCfg.Equal(cfg) {
		return false
	}
	if !maps.Equal(p.lastNotes, ann.Notes) {
		return false
	}
	if cfg.FavoritesOnly && !p.lastFavs.Equal(ann.Favorites) {
		return false
	}
	return true
}
