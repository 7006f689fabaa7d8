package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/socrates-agent/socrates/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) (*RedisCheckpointStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	s := NewRedisCheckpointStore(RedisOptions{Addr: mr.Addr(), TTL: ttl})
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedisCheckpointStore(t *testing.T) {
	s, _ := newTestStore(t, 0)
	ctx := context.Background()

	cp, err := store.NewCheckpoint("thread-1", "llm_call", map[string]string{"action": "wikipedia"}, 1)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, cp))

	loaded, err := s.Load(ctx, cp.ID)
	require.NoError(t, err)
	assert.Equal(t, cp.ID, loaded.ID)
	assert.Equal(t, "thread-1", loaded.ThreadID)

	var state map[string]string
	require.NoError(t, loaded.Decode(&state))
	assert.Equal(t, "wikipedia", state["action"])

	second, err := store.NewCheckpoint("thread-1", "wikipedia", map[string]string{}, 2)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, second))

	list, err := s.List(ctx, "thread-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, cp.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	latest, err := s.Latest(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	require.NoError(t, s.Delete(ctx, cp.ID))
	_, err = s.Load(ctx, cp.ID)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	list, err = s.List(ctx, "thread-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.Clear(ctx, "thread-1"))
	list, err = s.List(ctx, "thread-1")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = s.Latest(ctx, "thread-1")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestRedisCheckpointStore_TTL(t *testing.T) {
	s, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	cp, err := store.NewCheckpoint("short", "llm_call", 1, 1)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, cp))

	assert.Equal(t, time.Hour, mr.TTL("socrates:checkpoint:"+cp.ID))
	assert.Equal(t, time.Hour, mr.TTL("socrates:thread:short:checkpoints"))

	mr.FastForward(2 * time.Hour)

	list, err := s.List(ctx, "short")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRedisCheckpointStore_DeleteMissing(t *testing.T) {
	s, _ := newTestStore(t, 0)
	assert.NoError(t, s.Delete(context.Background(), "nope"))
}
