package lookup

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/residence-finder/internal/enrich"
	"github.com/sells-group/residence-finder/internal/model"
)

var (
	testRefs = enrich.References{Casa1: model.NewCoord(40.41, -3.70), Casa2: model.NewCoord(40.45, -3.69)}
	pinos    = model.Residence{Name: "Residencia Los Pinos"}
	pair     = model.DistancePair{
		Casa1: model.Distance{Distancia: "9 km", Tiempo: "15 minutos"},
		Casa2: model.Distance{Distancia: "4 km", Tiempo: "8 minutos"},
	}
)

func TestDistanceLookup_RequiresSelection(t *testing.T) {
	l := NewDistanceLookup(new(mockEnricher), testRefs, nil)
	_, err := l.Fetch(context.Background(), olmos)
	assert.ErrorIs(t, err, ErrNotSelected)
}

func TestDistanceLookup_FetchAndCache(t *testing.T) {
	me := new(mockEnricher)
	me.On("Distances", mock.Anything, olmos, testRefs).Return(pair, nil).Once()

	l := NewDistanceLookup(me, testRefs, nil)
	l.Select(olmos.Name)

	got, err := l.Fetch(context.Background(), olmos)
	require.NoError(t, err)
	assert.Equal(t, pair, got)

	_, err = l.Fetch(context.Background(), olmos)
	require.NoError(t, err)
	me.AssertNumberOfCalls(t, "Distances", 1)

	key, e := l.Current()
	assert.Equal(t, olmos.Name, key)
	assert.Equal(t, StateReady, e.State)
}

func TestDistanceLookup_SelectResets(t *testing.T) {
	me := new(mockEnricher)
	me.On("Distances", mock.Anything, olmos, testRefs).Return(pair, nil)

	l := NewDistanceLookup(me, testRefs, nil)
	l.Select(olmos.Name)
	_, err := l.Fetch(context.Background(), olmos)
	require.NoError(t, err)

	// Reselecting the same key keeps the result.
	l.Select(olmos.Name)
	_, e := l.Current()
	assert.Equal(t, StateReady, e.State)

	l.Select(pinos.Name)
	key, e := l.Current()
	assert.Equal(t, pinos.Name, key)
	assert.Equal(t, StateEmpty, e.State)

	l.Select(olmos.Name)
	_, e = l.Current()
	assert.Equal(t, StateEmpty, e.State, "switching away discards results")

	l.Select("")
	key, _ = l.Current()
	assert.Empty(t, key)
}

func TestDistanceLookup_StaleResultDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	me := new(mockEnricher)
	me.On("Distances", mock.Anything, olmos, testRefs).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(pair, nil).Once()

	l := NewDistanceLookup(me, testRefs, nil)
	l.Select(olmos.Name)

	errc := make(chan error, 1)
	go func() {
		_, err := l.Fetch(context.Background(), olmos)
		errc <- err
	}()
	<-started
	l.Select(pinos.Name)
	close(release)

	assert.ErrorIs(t, <-errc, ErrStale)
	key, e := l.Current()
	assert.Equal(t, pinos.Name, key)
	assert.Equal(t, StateEmpty, e.State)
}

func TestDistanceLookup_Failure(t *testing.T) {
	me := new(mockEnricher)
	me.On("Distances", mock.Anything, olmos, testRefs).Return(model.DistancePair{}, eris.New("schema"))

	l := NewDistanceLookup(me, testRefs, nil)
	l.Select(olmos.Name)
	_, err := l.Fetch(context.Background(), olmos)
	require.Error(t, err)
	assert.Equal(t, DistanceFailureMessage, err.Error())

	_, e := l.Current()
	assert.Equal(t, StateFailed, e.State)
}
