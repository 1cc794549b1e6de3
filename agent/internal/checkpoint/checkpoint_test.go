package checkpoint

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedTail(n uint64) TailFunc {
	return func(context.Context) (uint64, error) { return n, nil }
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), "redis://"+mr.Addr(), Key("WS-01", "Security"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return mr, store
}

func TestInitialize_UsesTail(t *testing.T) {
	tr := New(fixedTail(500), nil, nil)

	got, err := tr.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(500), got)
	assert.Equal(t, uint64(500), tr.Current())
}

func TestInitialize_TailError(t *testing.T) {
	tr := New(func(context.Context) (uint64, error) { return 0, errors.New("access denied") }, nil, nil)

	_, err := tr.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestAdvance_Monotonic(t *testing.T) {
	ctx := context.Background()
	tr := New(fixedTail(100), nil, nil)
	_, err := tr.Initialize(ctx)
	require.NoError(t, err)

	inputs := []uint64{105, 105, 103, 0, 110, 109, 110, 200}
	prev := tr.Current()
	for _, in := range inputs {
		tr.Advance(ctx, in)
		cur := tr.Current()
		assert.GreaterOrEqual(t, cur, prev, "checkpoint decreased after Advance(%d)", in)
		prev = cur
	}
	assert.Equal(t, uint64(200), tr.Current())
}

func TestAdvance_ReportsMovement(t *testing.T) {
	ctx := context.Background()
	tr := New(fixedTail(10), nil, nil)
	_, _ = tr.Initialize(ctx)

	assert.True(t, tr.Advance(ctx, 11))
	assert.False(t, tr.Advance(ctx, 11))
	assert.False(t, tr.Advance(ctx, 5))
}

func TestRedisStore_ResumesFromPersisted(t *testing.T) {
	ctx := context.Background()
	mr, store := setupTestRedis(t)
	mr.Set(Key("WS-01", "Security"), "420")

	tr := New(fixedTail(500), store, nil)
	got, err := tr.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(420), got)
}

func TestRedisStore_IgnoresValueBeyondTail(t *testing.T) {
	ctx := context.Background()
	mr, store := setupTestRedis(t)
	mr.Set(Key("WS-01", "Security"), "9000")

	tr := New(fixedTail(500), store, nil)
	got, err := tr.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), got)

	persisted, err := mr.Get(Key("WS-01", "Security"))
	require.NoError(t, err)
	assert.Equal(t, "500", persisted)
}

func TestRedisStore_PersistsAdvance(t *testing.T) {
	ctx := context.Background()
	mr, store := setupTestRedis(t)

	tr := New(fixedTail(7), store, nil)
	_, err := tr.Initialize(ctx)
	require.NoError(t, err)
	tr.Advance(ctx, 12)

	v, err := mr.Get(Key("WS-01", "Security"))
	require.NoError(t, err)
	assert.Equal(t, "12", v)

	loaded, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(12), loaded)
}

func TestRedisStore_CorruptValue(t *testing.T) {
	ctx := context.Background()
	mr, store := setupTestRedis(t)
	mr.Set(Key("WS-01", "Security"), "not-a-number")

	_, _, err := store.Load(ctx)
	assert.Error(t, err)

	tr := New(fixedTail(30), store, nil)
	got, err := tr.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), got)
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "://bad", "k")
	assert.Error(t, err)
}
