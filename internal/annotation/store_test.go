package annotation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/residence-finder/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// countingStore wraps a MemoryStore and records writes per key.
type countingStore struct {
	*store.MemoryStore
	mu      sync.Mutex
	writes  map[string]int
	failSet error
	failGet error
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: store.NewMemory(), writes: map[string]int{}}
}

func (c *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if c.failGet != nil {
		return nil, c.failGet
	}
	return c.MemoryStore.Get(ctx, key)
}

func (c *countingStore) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	c.writes[key]++
	c.mu.Unlock()
	if c.failSet != nil {
		return c.failSet
	}
	return c.MemoryStore.Set(ctx, key, value)
}

func (c *countingStore) count(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes[key]
}

func TestLoad_Empty(t *testing.T) {
	s := Load(context.Background(), store.NewMemory())
	snap := s.Snapshot()
	assert.Equal(t, 0, snap.Favorites.Len())
	assert.Equal(t, 0, snap.Contacted.Len())
	assert.Empty(t, snap.Notes)
	assert.Equal(t, uint64(0), snap.Revision)
}

func TestLoad_Existing(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Set(ctx, store.KeyFavorites, []byte(`["A","B"]`)))
	require.NoError(t, kv.Set(ctx, store.KeyContacted, []byte(`["C"]`)))
	require.NoError(t, kv.Set(ctx, store.KeyNotes, []byte(`{"A":"visitar el martes"}`)))

	s := Load(ctx, kv)
	assert.True(t, s.IsFavorite("A"))
	assert.True(t, s.IsFavorite("B"))
	assert.True(t, s.IsContacted("C"))
	assert.Equal(t, "visitar el martes", s.Note("A"))
}

func TestLoad_CorruptYieldsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Set(ctx, store.KeyFavorites, []byte(`{not json`)))
	require.NoError(t, kv.Set(ctx, store.KeyContacted, []byte(`{"A":1}`)))
	require.NoError(t, kv.Set(ctx, store.KeyNotes, []byte(`null`)))

	s := Load(ctx, kv)
	snap := s.Snapshot()
	assert.Equal(t, 0, snap.Favorites.Len())
	assert.Equal(t, 0, snap.Contacted.Len())
	assert.NotNil(t, snap.Notes)
	assert.Empty(t, snap.Notes)
}

func TestLoad_ReadErrorYieldsEmpty(t *testing.T) {
	kv := newCountingStore()
	kv.failGet = errors.New("backend down")

	s := Load(context.Background(), kv)
	assert.Equal(t, 0, s.Snapshot().Favorites.Len())
}

func TestToggleFavorite_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := newCountingStore()
	s := Load(ctx, kv)
	before := s.Snapshot()

	on, err := s.ToggleFavorite(ctx, "A")
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, 1, kv.count(store.KeyFavorites))

	off, err := s.ToggleFavorite(ctx, "A")
	require.NoError(t, err)
	assert.False(t, off)
	assert.Equal(t, 2, kv.count(store.KeyFavorites), "one write per toggle")

	after := s.Snapshot()
	assert.True(t, before.Favorites.Equal(after.Favorites))
	assert.Equal(t, uint64(2), after.Revision)

	data, err := kv.MemoryStore.Get(ctx, store.KeyFavorites)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestToggleContacted_Persists(t *testing.T) {
	ctx := context.Background()
	kv := newCountingStore()
	s := Load(ctx, kv)

	_, err := s.ToggleContacted(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, 1, kv.count(store.KeyContacted))
	assert.Equal(t, 0, kv.count(store.KeyFavorites))

	reloaded := Load(ctx, kv.MemoryStore)
	assert.True(t, reloaded.IsContacted("B"))
}

func TestSetNote(t *testing.T) {
	ctx := context.Background()
	kv := newCountingStore()
	s := Load(ctx, kv)

	require.NoError(t, s.SetNote(ctx, "A", "hi"))
	assert.Equal(t, "hi", s.Note("A"))

	require.NoError(t, s.SetNote(ctx, "A", "   "))
	assert.Equal(t, "", s.Note("A"))
	_, present := s.Snapshot().Notes["A"]
	assert.False(t, present, "blank note must remove the entry")
	assert.Equal(t, 2, kv.count(store.KeyNotes))

	data, err := kv.MemoryStore.Get(ctx, store.KeyNotes)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestSetNote_KeepsTextVerbatim(t *testing.T) {
	ctx := context.Background()
	s := Load(ctx, store.NewMemory())

	require.NoError(t, s.SetNote(ctx, "A", "  llamar a Marta  "))
	assert.Equal(t, "  llamar a Marta  ", s.Note("A"))
}

func TestSnapshot_IsImmutable(t *testing.T) {
	ctx := context.Background()
	s := Load(ctx, store.NewMemory())
	require.NoError(t, s.SetNote(ctx, "A", "uno"))

	snap := s.Snapshot()
	_, err := s.ToggleFavorite(ctx, "A")
	require.NoError(t, err)
	require.NoError(t, s.SetNote(ctx, "A", "dos"))

	assert.False(t, snap.Favorites.Has("A"))
	assert.Equal(t, "uno", snap.Notes["A"])
}

func TestPersistFailure_KeepsStateAndReturnsError(t *testing.T) {
	ctx := context.Background()
	kv := newCountingStore()
	s := Load(ctx, kv)
	kv.failSet = errors.New("disk full")

	on, err := s.ToggleFavorite(ctx, "A")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, on)
	assert.True(t, s.IsFavorite("A"))
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	s := Load(ctx, store.NewMemory())

	var got []Change
	s.Subscribe(func(c Change) { got = append(got, c) })

	_, _ = s.ToggleFavorite(ctx, "A")
	_, _ = s.ToggleContacted(ctx, "B")
	_ = s.SetNote(ctx, "C", "nota")

	require.Len(t, got, 3)
	assert.Equal(t, Change{Kind: KindFavorites, Key: "A", Revision: 1}, got[0])
	assert.Equal(t, Change{Kind: KindContacted, Key: "B", Revision: 2}, got[1])
	assert.Equal(t, Change{Kind: KindNotes, Key: "C", Revision: 3}, got[2])
}

func TestStore_SubscribersSeeEveryChange(t *testing.T) {
	ctx := context.Background()
	s := Load(ctx, store.NewMemory())

	var first, second []Change
	s.Subscribe(func(c Change) {
		first = append(first, c)
		if len(first) == 1 {
			// Subscribing from a callback takes effect for the next change.
			s.Subscribe(func(c Change) { second = append(second, c) })
		}
	})

	_, err := s.ToggleFavorite(ctx, "Residencia Los Olmos")
	require.NoError(t, err)
	require.NoError(t, s.SetNote(ctx, "Residencia Los Olmos", "llamar el lunes"))

	assert.Equal(t, []Change{
		{Kind: KindFavorites, Key: "Residencia Los Olmos", Revision: 1},
		{Kind: KindNotes, Key: "Residencia Los Olmos", Revision: 2},
	}, first)
	assert.Equal(t, []Change{{Kind: KindNotes, Key: "Residencia Los Olmos", Revision: 2}}, second)
}
