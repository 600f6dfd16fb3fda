package keepalive

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prism-gateway/llm-router/internal/core/domain"
	"github.com/prism-gateway/llm-router/internal/store/coordination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	calls int32
}

func (f *fakePinger) Ping(_ context.Context, _ string, _ domain.ProviderSpec) error {
	atomic.AddInt32(&f.calls, 1)
	return nil
}

func TestRecordUsage_SchedulesWakeup(t *testing.T) {
	ctx := context.Background()
	store := coordination.NewMemoryStore()
	m := New(store, &fakePinger{}, nil, time.Millisecond, nil)

	require.NoError(t, m.RecordUsage(ctx, "llama3", "hostA", "30s"))

	due, err := store.ZRangeByScore(ctx, wakeupZSetKey, 0, float64(time.Now().Unix()+31))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "llama3|hostA", due[0].Member)
}

func TestRecordUsage_BlankKeepAliveClearsSchedule(t *testing.T) {
	ctx := context.Background()
	store := coordination.NewMemoryStore()
	m := New(store, &fakePinger{}, nil, time.Millisecond, nil)

	require.NoError(t, m.RecordUsage(ctx, "llama3", "hostA", "30s"))
	require.NoError(t, m.RecordUsage(ctx, "llama3", "hostA", ""))

	due, err := store.ZRangeByScore(ctx, wakeupZSetKey, 0, float64(time.Now().Unix()+31))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestTick_PingsDueFreeHost(t *testing.T) {
	ctx := context.Background()
	store := coordination.NewMemoryStore()
	pinger := &fakePinger{}
	m := New(store, pinger, func(string, string) bool { return true }, time.Millisecond, nil)

	require.NoError(t, store.HSet(ctx, providerHashKey("llama3", "hostA"), map[string]string{
		"keep_alive_seconds": "30",
	}))
	require.NoError(t, store.ZAdd(ctx, wakeupZSetKey, member("llama3", "hostA"), float64(time.Now().Unix()-1)))

	m.tick(ctx)

	assert.Equal(t, int32(1), atomic.LoadInt32(&pinger.calls))

	due, err := store.ZRangeByScore(ctx, wakeupZSetKey, 0, float64(time.Now().Unix()+31))
	require.NoError(t, err)
	require.Len(t, due, 1, "the provider must be rescheduled after a ping")
}

func TestTick_SkipsBusyHostAndReschedules(t *testing.T) {
	ctx := context.Background()
	store := coordination.NewMemoryStore()
	pinger := &fakePinger{}
	m := New(store, pinger, func(string, string) bool { return false }, time.Millisecond, nil)

	require.NoError(t, store.HSet(ctx, providerHashKey("llama3", "hostA"), map[string]string{
		"keep_alive_seconds": "30",
	}))
	require.NoError(t, store.ZAdd(ctx, wakeupZSetKey, member("llama3", "hostA"), float64(time.Now().Unix()-1)))

	m.tick(ctx)

	assert.Equal(t, int32(0), atomic.LoadInt32(&pinger.calls), "a busy host must not be pinged")

	due, err := store.ZRangeByScore(ctx, wakeupZSetKey, 0, float64(time.Now().Unix()+31))
	require.NoError(t, err)
	require.Len(t, due, 1, "a skipped provider must still be rescheduled, not dropped")
}

func TestTick_RemovesProviderWithNoKeepAlive(t *testing.T) {
	ctx := context.Background()
	store := coordination.NewMemoryStore()
	pinger := &fakePinger{}
	m := New(store, pinger, func(string, string) bool { return true }, time.Millisecond, nil)

	require.NoError(t, store.HSet(ctx, providerHashKey("llama3", "hostA"), map[string]string{
		"keep_alive_seconds": "0",
	}))
	require.NoError(t, store.ZAdd(ctx, wakeupZSetKey, member("llama3", "hostA"), float64(time.Now().Unix()-1)))

	m.tick(ctx)

	assert.Equal(t, int32(0), atomic.LoadInt32(&pinger.calls))

	due, err := store.ZRangeByScore(ctx, wakeupZSetKey, 0, float64(time.Now().Unix()+31))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := coordination.NewMemoryStore()
	m := New(store, &fakePinger{}, nil, time.Millisecond, nil)

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
