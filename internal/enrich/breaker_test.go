package enrich

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/residence-finder/internal/model"
)

type mockEnricher struct {
	mock.Mock
}

func (m *mockEnricher) Summarize(ctx context.Context, r model.Residence) (model.Summary, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(model.Summary), args.Error(1)
}

func (m *mockEnricher) Distances(ctx context.Context, r model.Residence, refs References) (model.DistancePair, error) {
	args := m.Called(ctx, r, refs)
	return args.Get(0).(model.DistancePair), args.Error(1)
}

var errDown = eris.New("connection refused")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestBreaker(next Enricher) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	b := NewBreaker(next, BreakerConfig{Threshold: 2, Cooldown: time.Minute})
	b.now = clock.now
	return b, clock
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	m := new(mockEnricher)
	r := model.Residence{Name: "Residencia Los Olmos"}
	m.On("Summarize", mock.Anything, r).Return(model.Summary{}, errDown).Twice()

	b, _ := newTestBreaker(m)
	ctx := context.Background()

	_, err := b.Summarize(ctx, r)
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, BreakerClosed, b.State())

	_, err = b.Summarize(ctx, r)
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, BreakerOpen, b.State())

	_, err = b.Summarize(ctx, r)
	assert.True(t, eris.Is(err, ErrBreakerOpen))
	m.AssertNumberOfCalls(t, "Summarize", 2)
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	m := new(mockEnricher)
	r := model.Residence{Name: "Residencia Los Olmos"}
	refs := References{Casa1: model.NewCoord(40.49, -3.96), Casa2: model.NewCoord(40.32, -3.86)}
	pair := model.DistancePair{Casa1: model.Distance{Distancia: "5 km", Tiempo: "8 minutos"}}

	m.On("Distances", mock.Anything, r, refs).Return(model.DistancePair{}, errDown).Twice()
	b, clock := newTestBreaker(m)
	ctx := context.Background()
	for range 2 {
		_, _ = b.Distances(ctx, r, refs)
	}
	require.Equal(t, BreakerOpen, b.State())

	clock.t = clock.t.Add(time.Minute)
	assert.Equal(t, BreakerHalfOpen, b.State())

	m.ExpectedCalls = nil
	m.On("Distances", mock.Anything, r, refs).Return(pair, nil).Once()
	got, err := b.Distances(ctx, r, refs)
	require.NoError(t, err)
	assert.Equal(t, pair, got)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_FailedHalfOpenCallReopens(t *testing.T) {
	m := new(mockEnricher)
	r := model.Residence{Name: "Residencia Los Olmos"}
	m.On("Summarize", mock.Anything, r).Return(model.Summary{}, errDown)

	var transitions []string
	b, clock := newTestBreaker(m)
	b.cfg.OnStateChange = func(from, to BreakerState) {
		transitions = append(transitions, from.String()+">"+to.String())
	}
	ctx := context.Background()
	for range 2 {
		_, _ = b.Summarize(ctx, r)
	}
	clock.t = clock.t.Add(2 * time.Minute)
	_, err := b.Summarize(ctx, r)
	assert.ErrorIs(t, err, errDown)

	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>open"}, transitions)
	assert.Equal(t, BreakerOpen, b.State())
}

func TestBreaker_IgnoresSchemaAndCancellation(t *testing.T) {
	m := new(mockEnricher)
	r := model.Residence{Name: "Residencia Los Olmos"}
	m.On("Summarize", mock.Anything, r).Return(model.Summary{}, eris.Wrap(ErrSchema, "missing resumen"))

	b, _ := newTestBreaker(m)
	for range 3 {
		_, err := b.Summarize(context.Background(), r)
		assert.True(t, eris.Is(err, ErrSchema))
	}
	assert.Equal(t, BreakerClosed, b.State())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.ExpectedCalls = nil
	m.On("Summarize", mock.Anything, r).Return(model.Summary{}, context.Canceled)
	for range 3 {
		_, _ = b.Summarize(ctx, r)
	}
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_Reset(t *testing.T) {
	m := new(mockEnricher)
	r := model.Residence{Name: "Residencia Los Olmos"}
	m.On("Summarize", mock.Anything, r).Return(model.Summary{}, errDown)

	b, _ := newTestBreaker(m)
	for range 2 {
		_, _ = b.Summarize(context.Background(), r)
	}
	require.Equal(t, BreakerOpen, b.State())
	b.Reset()
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}
