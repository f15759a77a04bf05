// Package annotation holds the user's per-residence annotations (favorites, contacted,
// notes) and mirrors every change to the durable store.
package annotation

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/residence-finder/internal/model"
	"github.com/sells-group/residence-finder/internal/store"
)

// Kind names the collection touched by a Change.
type Kind string

const (
	KindFavorites Kind = "favorites"
	KindContacted Kind = "contacted"
	KindNotes     Kind = "notes"
)

// Change is delivered to subscribers after every mutation.
type Change struct {
	Kind     Kind
	Key      string
	Revision uint64
}

// Snapshot is a read-only view of the annotation state at one revision.
// The collections are never mutated after the snapshot is taken.
type Snapshot struct {
	Favorites model.StringSet
	Contacted model.StringSet
	Notes     map[string]string
	Revision  uint64
}

// Store owns the annotation collections. Each mutation builds a new collection,
// writes it to the backing store exactly once, then notifies subscribers.
type Store struct {
	mu        sync.RWMutex
	kv        store.Store
	favorites model.StringSet
	contacted model.StringSet
	notes     map[string]string
	revision  uint64

	subMu       sync.Mutex
	subscribers []func(Change)
}

// Load reads the three collections once. Missing or corrupt values yield empty
// collections; storage errors are logged and never returned.
func Load(ctx context.Context, kv store.Store) *Store {
	s := &Store{
		kv:        kv,
		favorites: model.NewStringSet(),
		contacted: model.NewStringSet(),
		notes:     map[string]string{},
	}
	loadJSON(ctx, kv, store.KeyFavorites, &s.favorites)
	loadJSON(ctx, kv, store.KeyContacted, &s.contacted)
	loadJSON(ctx, kv, store.KeyNotes, &s.notes)
	if s.favorites == nil {
		s.favorites = model.NewStringSet()
	}
	if s.contacted == nil {
		s.contacted = model.NewStringSet()
	}
	if s.notes == nil {
		s.notes = map[string]string{}
	}
	return s
}

// loadJSON decodes key into dst, leaving dst untouched on any failure.
func loadJSON[T any](ctx context.Context, kv store.Store, key string, dst *T) {
	data, err := kv.Get(ctx, key)
	if err != nil {
		zap.L().Warn("annotation: read failed, starting empty", zap.String("key", key), zap.Error(err))
		return
	}
	if len(data) == 0 {
		return
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		zap.L().Warn("annotation: corrupt value, starting empty", zap.String("key", key), zap.Error(err))
		return
	}
	*dst = v
}

// Subscribe registers fn to run after every mutation.
func (s *Store) Subscribe(fn func(Change)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) notify(c Change) {
	s.subMu.Lock()
	subs := slices.Clone(s.subscribers)
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(c)
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Favorites: s.favorites,
		Contacted: s.contacted,
		Notes:     s.notes,
		Revision:  s.revision,
	}
}

// IsFavorite reports whether key is a favorite.
func (s *Store) IsFavorite(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.favorites.Has(key)
}

// IsContacted reports whether key is marked as contacted.
func (s *Store) IsContacted(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contacted.Has(key)
}

// Note returns the note for key, or "".
func (s *Store) Note(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notes[key]
}

// ToggleFavorite flips key's favorite membership and returns the new membership.
// The in-memory change is kept even if persisting fails; the error is returned.
func (s *Store) ToggleFavorite(ctx context.Context, key string) (bool, error) {
	return s.toggle(ctx, KindFavorites, key)
}

// ToggleContacted flips key's contacted membership and returns the new membership.
func (s *Store) ToggleContacted(ctx context.Context, key string) (bool, error) {
	return s.toggle(ctx, KindContacted, key)
}

func (s *Store) toggle(ctx context.Context, kind Kind, key string) (bool, error) {
	s.mu.Lock()
	var (
		next   model.StringSet
		kvKey  string
		member bool
	)
	switch kind {
	case KindFavorites:
		next = s.favorites.Toggle(key)
		s.favorites = next
		kvKey = store.KeyFavorites
	default:
		next = s.contacted.Toggle(key)
		s.contacted = next
		kvKey = store.KeyContacted
	}
	member = next.Has(key)
	s.revision++
	rev := s.revision
	err := s.persist(ctx, kvKey, next)
	s.mu.Unlock()

	s.notify(Change{Kind: kind, Key: key, Revision: rev})
	return member, err
}

// SetNote stores text as key's note. Text that is empty after trimming removes the note.
func (s *Store) SetNote(ctx context.Context, key, text string) error {
	s.mu.Lock()
	next := make(map[string]string, len(s.notes)+1)
	for k, v := range s.notes {
		next[k] = v
	}
	if strings.TrimSpace(text) != "" {
		next[key] = text
	} else {
		delete(next, key)
	}
	s.notes = next
	s.revision++
	rev := s.revision
	err := s.persist(ctx, store.KeyNotes, next)
	s.mu.Unlock()

	s.notify(Change{Kind: KindNotes, Key: key, Revision: rev})
	return err
}

// persist writes v under key. Called with s.mu held so writes land in mutation order.
func (s *Store) persist(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "annotation: marshal %s", key)
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		zap.L().Error("annotation: persist failed", zap.String("key", key), zap.Error(err))
		return eris.Wrapf(err, "annotation: persist %s", key)
	}
	return nil
}
