package coordination

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetNX(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ok, err := s.SetNX(ctx, "lock:model:a", "holder-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetNX(ctx, "lock:model:a", "holder-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second acquisition of a held lock must fail")

	require.NoError(t, s.Del(ctx, "lock:model:a"))

	ok, err = s.SetNX(ctx, "lock:model:a", "holder-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lock must be acquirable again after release")
}

func TestMemoryStore_SetNX_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ok, err := s.SetNX(ctx, "k", "v", time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(5 * time.Millisecond)

	ok, err = s.SetNX(ctx, "k", "v2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "an expired key must be treated as absent")
}

func TestMemoryStore_Hash(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.HSet(ctx, "h", map[string]string{"a": "1", "b": "2"}))

	v, ok, err := s.HGet(ctx, "h", "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	n, err := s.HIncrBy(ctx, "h", "counter", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = s.HIncrBy(ctx, "h", "counter", -1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, s.HDel(ctx, "h", "a"))
	_, ok, err = s.HGet(ctx, "h", "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_HLen(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	n, err := s.HLen(ctx, "host:h1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	require.NoError(t, s.HSet(ctx, "host:h1", map[string]string{"llama3": "1"}))
	n, err = s.HLen(ctx, "host:h1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryStore_Set(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.SAdd(ctx, "hosts", "h1"))
	require.NoError(t, s.SAdd(ctx, "hosts", "h2"))

	members, err := s.SMembers(ctx, "hosts")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"h1", "h2"}, members)

	ok, err := s.SIsMember(ctx, "hosts", "h1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.SRem(ctx, "hosts", "h1"))
	ok, err = s.SIsMember(ctx, "hosts", "h1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_ZSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.ZAdd(ctx, "wakeups", "p1", 100))
	require.NoError(t, s.ZAdd(ctx, "wakeups", "p2", 50))
	require.NoError(t, s.ZAdd(ctx, "wakeups", "p3", 200))

	due, err := s.ZRangeByScore(ctx, "wakeups", 0, 150)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "p2", due[0].Member)
	assert.Equal(t, "p1", due[1].Member)

	require.NoError(t, s.ZRem(ctx, "wakeups", "p2"))
	due, err = s.ZRangeByScore(ctx, "wakeups", 0, 150)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "p1", due[0].Member)
}

func TestMemoryStore_AcquireReleaseOptim(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	res, err := s.AcquireOptim(ctx, "lock:llama3:p1", "req-1", time.Minute, "llama3", "hostA")
	require.NoError(t, err)
	assert.True(t, res.Acquired)
	assert.Equal(t, "", res.PriorLastHost)

	res2, err := s.AcquireOptim(ctx, "lock:llama3:p1", "req-2", time.Minute, "llama3", "hostA")
	require.NoError(t, err)
	assert.False(t, res2.Acquired, "a held lock must reject a second acquisition")

	require.NoError(t, s.ReleaseOptim(ctx, "lock:llama3:p1", "llama3"))

	res3, err := s.AcquireOptim(ctx, "lock:llama3:p1", "req-3", time.Minute, "llama3", "hostB")
	require.NoError(t, err)
	assert.True(t, res3.Acquired)
	assert.Equal(t, "hostA", res3.PriorLastHost, "last_host must report the previously recorded host")

	members, err := s.SMembers(ctx, "model:llama3:hosts")
	require.NoError(t, err)
	assert.Contains(t, members, "hostB")
}

func TestMemoryStore_Ping(t *testing.T) {
	assert.NoError(t, NewMemoryStore().Ping(context.Background()))
}
