// Package store provides the durable key-value store that mirrors user annotations
// and cached AI summaries. Values are opaque JSON documents keyed by name.
package store

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
)

// Well-known keys.
const (
	KeyFavorites = "favoriteResidences"
	KeyContacted = "contactedResidences"
	KeyNotes     = "residenceNotes"
	KeySummaries = "geminiSummaries"
)

// Store is a string-keyed document store.
type Store interface {
	// Get returns the value stored under key, or nil with no error if absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Migrate prepares the backend schema. Idempotent.
	Migrate(ctx context.Context) error
	Close() error
}

// Options selects and configures a backend for Open.
type Options struct {
	Driver        string // "sqlite", "postgres", "redis" or "memory"
	Path          string // sqlite file
	DatabaseURL   string // postgres
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Open creates the backend named by opts.Driver and runs its migration.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		st  Store
		err error
	)
	switch opts.Driver {
	case "sqlite", "":
		path := opts.Path
		if path == "" {
			path = "residences.db"
		}
		st, err = NewSQLite(path)
	case "postgres":
		st, err = NewPostgres(ctx, opts.DatabaseURL)
	case "redis":
		st, err = NewRedis(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.RedisPrefix)
	case "memory":
		st = NewMemory()
	default:
		return nil, eris.Errorf("store: unsupported driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "store: migrate")
	}
	return st, nil
}

// MemoryStore keeps values in process memory. Used for tests and --store=memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Migrate(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
