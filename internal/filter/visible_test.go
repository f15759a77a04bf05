package filter

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/residence-finder/internal/annotation"
	"github.com/sells-group/residence-finder/internal/model"
)

func sampleDataset() []model.Residence {
	return []model.Residence{
		{Name: "R0", Address: "Calle 1, 28001 A, Madrid", PriceRange: "1.500€", Coords: model.NewCoord(40.40, -3.70)},
		{Name: "R1", Address: "Calle 2, 28002 B, Madrid", PriceRange: "2.600€", Coords: model.NewCoord(40.41, -3.71)},
		{Name: "R2", Address: "Calle 3, 28003 A, Madrid", PriceRange: "Concertada", Coords: model.NewCoord(40.90, -3.20)},
	}
}

func emptySnapshot() annotation.Snapshot {
	return annotation.Snapshot{
		Favorites: model.NewStringSet(),
		Contacted: model.NewStringSet(),
		Notes:     map[string]string{},
	}
}

func names(rs []model.Residence) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name
	}
	return out
}

func TestComputeVisible_EndToEnd(t *testing.T) {
	cfg := Config{
		Cities: model.NewStringSet("A"),
		Prices: model.NewStringSet(BucketUnder2000, BucketNA),
	}
	got := ComputeVisible(sampleDataset(), emptySnapshot(), cfg)
	assert.Equal(t, []string{"R0", "R2"}, names(got))
}

func TestComputeVisible_DefaultShowsAll(t *testing.T) {
	ds := sampleDataset()
	cfg := DefaultConfig([]string{"A", "B"})
	got := ComputeVisible(ds, emptySnapshot(), cfg)
	assert.Equal(t, []string{"R0", "R1", "R2"}, names(got))
}

func TestComputeVisible_EmptySelectionsHideEverything(t *testing.T) {
	cfg := DefaultConfig([]string{"A", "B"})
	cfg.Prices = model.NewStringSet()
	assert.Empty(t, ComputeVisible(sampleDataset(), emptySnapshot(), cfg))

	cfg = DefaultConfig(nil)
	assert.Empty(t, ComputeVisible(sampleDataset(), emptySnapshot(), cfg))
}

func TestComputeVisible_ProximityIgnoresEmptyCityAndPrice(t *testing.T) {
	cfg := Config{
		Cities:    model.NewStringSet(),
		Prices:    model.NewStringSet(),
		Proximity: &Proximity{Center: model.NewCoord(40.40, -3.70), RadiusKM: 5},
	}
	got := ComputeVisible(sampleDataset(), emptySnapshot(), cfg)
	assert.Equal(t, []string{"R0", "R1"}, names(got))
}

func TestComputeVisible_AttachesNotesWithoutTouchingDataset(t *testing.T) {
	ds := sampleDataset()
	snap := emptySnapshot()
	snap.Notes = map[string]string{"R1": "llamar el lunes"}

	got := ComputeVisible(ds, snap, DefaultConfig([]string{"A", "B"}))
	require.Len(t, got, 3)
	assert.Equal(t, "llamar el lunes", got[1].Notes)
	assert.Empty(t, got[0].Notes)
	assert.Empty(t, ds[1].Notes)
}

func TestPipeline_Memoizes(t *testing.T) {
	p := NewPipeline(sampleDataset())
	cfg := DefaultConfig([]string{"A", "B"})
	snap := emptySnapshot()

	first := p.Visible(snap, cfg)
	second := p.Visible(snap, cfg.Clone())
	assert.Equal(t, first, second)
	assert.Equal(t, 1, p.Computations())

	// Favorites do not matter while favorites-only is off.
	snap.Favorites = model.NewStringSet("R0")
	snap.Revision = 1
	p.Visible(snap, cfg)
	assert.Equal(t, 1, p.Computations())

	cfg.FavoritesOnly = true
	got := p.Visible(snap, cfg)
	assert.Equal(t, []string{"R0"}, names(got))
	assert.Equal(t, 2, p.Computations())

	snap.Notes = map[string]string{"R0": "nota"}
	got = p.Visible(snap, cfg)
	assert.Equal(t, "nota", got[0].Notes)
	assert.Equal(t, 3, p.Computations())
}

func TestPipeline_ResultIsCallersCopy(t *testing.T) {
	p := NewPipeline(sampleDataset())
	cfg := DefaultConfig([]string{"A", "B"})
	got := p.Visible(emptySnapshot(), cfg)
	got[0].Name = "changed"
	again := p.Visible(emptySnapshot(), cfg)
	assert.Equal(t, "R0", again[0].Name)
}

func TestPipeline_Concurrent(t *testing.T) {
	p := NewPipeline(sampleDataset())
	cfg := DefaultConfig([]string{"A", "B"})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Len(t, p.Visible(emptySnapshot(), cfg), 3)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, p.Computations())
}

func TestConfigEqualAndClone(t *testing.T) {
	a := DefaultConfig([]string{"A"})
	a.Proximity = &Proximity{Center: model.NewCoord(1, 2), RadiusKM: 10}
	b := a.Clone()
	assert.True(t, a.Equal(b))

	b.Proximity.RadiusKM = 20
	assert.False(t, a.Equal(b))
	assert.Equal(t, 10.0, a.Proximity.RadiusKM)

	c := a.Clone()
	c.Cities = c.Cities.Toggle("A")
	assert.False(t, a.Equal(c))
	assert.True(t, a.Cities.Has("A"))
}
