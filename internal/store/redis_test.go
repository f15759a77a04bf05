//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a reachable Redis at REDIS_ADDR (default 127.0.0.1:6379).
func TestRedis_SetAndGet(t *testing.T) {
	ctx := context.Background()
	prefix := "residence-finder-test:" + uuid.NewString() + ":"

	st, err := NewRedis(ctx, os.Getenv("REDIS_ADDR"), os.Getenv("REDIS_PASS"), 0, prefix)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	data, err := st.Get(ctx, KeyFavorites)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, st.Set(ctx, KeyFavorites, []byte(`["A"]`)))
	data, err = st.Get(ctx, KeyFavorites)
	require.NoError(t, err)
	assert.Equal(t, `["A"]`, string(data))

	require.NoError(t, st.client.Del(ctx, prefix+KeyFavorites).Err())
}
