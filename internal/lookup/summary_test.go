package lookup

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/residence-finder/internal/model"
	"github.com/sells-group/residence-finder/internal/store"
)

var olmos = model.Residence{Name: "Residencia Los Olmos", Address: "Calle 1, 28034 Madrid, Madrid"}

func TestSummaryLookup_FetchClampsAndPersists(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	me := new(mockEnricher)
	me.On("Summarize", mock.Anything, olmos).
		Return(model.Summary{Summary: "Buena", Services: 9, Opinions: 0}, nil).Once()

	l := NewSummaryLookup(ctx, kv, me, nil)
	got, err := l.Fetch(ctx, olmos)
	require.NoError(t, err)
	assert.Equal(t, model.Summary{Summary: "Buena", Services: 5, Opinions: 1}, got)

	data, err := kv.Get(ctx, store.KeySummaries)
	require.NoError(t, err)
	var saved map[string]model.Summary
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, got, saved[olmos.Name])

	// A second fetch is served from the cache.
	again, err := l.Fetch(ctx, olmos)
	require.NoError(t, err)
	assert.Equal(t, got, again)
	me.AssertNumberOfCalls(t, "Summarize", 1)
}

func TestSummaryLookup_LoadsPersisted(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Set(ctx, store.KeySummaries,
		[]byte(`{"Residencia Los Olmos":{"summary":"Guardado","services":4,"opinions":7}}`)))

	me := new(mockEnricher)
	l := NewSummaryLookup(ctx, kv, me, nil)

	e := l.Get(olmos.Name)
	assert.Equal(t, StateReady, e.State)
	assert.Equal(t, 5, e.Value.Opinions)

	got, err := l.Fetch(ctx, olmos)
	require.NoError(t, err)
	assert.Equal(t, "Guardado", got.Summary)
	me.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything)
}

func TestSummaryLookup_CorruptStartsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Set(ctx, store.KeySummaries, []byte(`{not json`)))

	l := NewSummaryLookup(ctx, kv, new(mockEnricher), nil)
	assert.Empty(t, l.All())
}

func TestSummaryLookup_FailureThenRetry(t *testing.T) {
	ctx := context.Background()
	me := new(mockEnricher)
	me.On("Summarize", mock.Anything, olmos).Return(model.Summary{}, eris.New("timeout")).Once()
	me.On("Summarize", mock.Anything, olmos).Return(model.Summary{Summary: "ok", Services: 3, Opinions: 3}, nil).Once()

	l := NewSummaryLookup(ctx, store.NewMemory(), me, nil)
	_, err := l.Fetch(ctx, olmos)
	require.Error(t, err)
	assert.Equal(t, SummaryFailureMessage, err.Error())
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, KindSummary, lerr.Kind)
	assert.Contains(t, lerr.Cause.Error(), "timeout")

	e := l.Get(olmos.Name)
	assert.Equal(t, StateFailed, e.State)
	assert.Equal(t, SummaryFailureMessage, e.Err.Error())

	got, err := l.Fetch(ctx, olmos)
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Summary)
	assert.Equal(t, StateReady, l.Get(olmos.Name).State)
}

func TestSummaryLookup_Invalidate(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	me := new(mockEnricher)
	me.On("Summarize", mock.Anything, olmos).Return(model.Summary{Summary: "ok", Services: 3, Opinions: 3}, nil)

	l := NewSummaryLookup(ctx, kv, me, nil)
	_, err := l.Fetch(ctx, olmos)
	require.NoError(t, err)

	require.NoError(t, l.Invalidate(ctx, olmos.Name))
	assert.Equal(t, StateEmpty, l.Get(olmos.Name).State)

	data, err := kv.Get(ctx, store.KeySummaries)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}
