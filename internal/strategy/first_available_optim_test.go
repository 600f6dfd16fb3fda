package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/prism-gateway/llm-router/internal/core/domain"
	"github.com/prism-gateway/llm-router/internal/store/coordination"
	"github.com/stretchr/testify/require"
)

func TestFirstAvailableOptim_ReusesLastHost(t *testing.T) {
	ctx := context.Background()
	store := coordination.NewMemoryStore()
	f := NewFirstAvailableOptim(store, time.Second)
	providers := []domain.ProviderSpec{
		{ID: "p1", ApiHost: "hostA"},
		{ID: "p2", ApiHost: "hostB"},
	}

	p, err := f.Choose(ctx, "m", providers)
	require.NoError(t, err)
	require.Equal(t, "p1", p.ID)
	require.NoError(t, f.Release(ctx, "m", p.ID))

	p2, err := f.Choose(ctx, "m", providers)
	require.NoError(t, err)
	require.Equal(t, "p1", p2.ID, "hostA served last, so its provider must be reused")
}

// TestFirstAvailableOptim_ReusesOtherKnownHostWhenLastHostIsFull drives the
// lock state until last_host's own providers are all busy while an earlier,
// still-known host has a free slot, isolating step 2 of §4.3.5 from step 1
// (which would otherwise also match whenever last_host itself has a free
// provider).
func TestFirstAvailableOptim_ReusesOtherKnownHostWhenLastHostIsFull(t *testing.T) {
	ctx := context.Background()
	store := coordination.NewMemoryStore()
	f := NewFirstAvailableOptim(store, time.Second)
	providers := []domain.ProviderSpec{
		{ID: "p1a", ApiHost: "hostA"},
		{ID: "p1b", ApiHost: "hostA"},
		{ID: "p2", ApiHost: "hostB"},
		{ID: "p3", ApiHost: "hostB"},
	}

	pick := func() string {
		p, err := f.Choose(ctx, "m", providers)
		require.NoError(t, err)
		return p.ID
	}

	require.Equal(t, "p1a", pick()) // step 3: hostA unused, first in list
	require.Equal(t, "p1b", pick()) // step 1: reuse hostA, its other provider
	require.Equal(t, "p2", pick())  // hostA full, step 3: hostB unused
	require.Equal(t, "p3", pick())  // step 1: reuse hostB, its other provider

	require.NoError(t, f.Release(ctx, "m", "p1a")) // hostA now has one free slot again

	require.Equal(t, "p1a", pick(), "last_host (hostB) is full; hostA is still known and has a free provider")
}

// TestFirstAvailableOptim_DeletesStaleLastHost covers the case where the
// model's provider set has changed since last_host was recorded: the
// host it names is no longer one of the model's providers at all, so
// step 1 must delete the stale key rather than leave it to be consulted
// (and ignored) on every future Choose.
func TestFirstAvailableOptim_DeletesStaleLastHost(t *testing.T) {
	ctx := context.Background()
	store := coordination.NewMemoryStore()
	f := NewFirstAvailableOptim(store, time.Second)

	require.NoError(t, store.Set(ctx, "model:m:last_host", "hostGone"))

	providers := []domain.ProviderSpec{{ID: "p1", ApiHost: "hostA"}}
	p, err := f.Choose(ctx, "m", providers)
	require.NoError(t, err)
	require.Equal(t, "p1", p.ID)

	_, found, err := store.Get(ctx, "model:m:last_host")
	require.NoError(t, err)
	require.False(t, found, "stale last_host naming a now-absent host must be deleted")
}

func TestFirstAvailableOptim_SpreadsToUnusedHost(t *testing.T) {
	ctx := context.Background()
	store := coordination.NewMemoryStore()
	f := NewFirstAvailableOptim(store, time.Second)

	other := []domain.ProviderSpec{{ID: "x1", ApiHost: "hostX"}}
	_, err := f.Choose(ctx, "other-model", other)
	require.NoError(t, err)

	providers := []domain.ProviderSpec{
		{ID: "p1", ApiHost: "hostX"},
		{ID: "p2", ApiHost: "hostY"},
	}
	p, err := f.Choose(ctx, "m", providers)
	require.NoError(t, err)
	require.Equal(t, "p2", p.ID, "hostX already has active occupancy from another model, hostY is unused")
}

func TestFirstAvailableOptim_FallsBackToFirstAvailableWhenAllBusy(t *testing.T) {
	ctx := context.Background()
	store := coordination.NewMemoryStore()
	f := NewFirstAvailableOptim(store, time.Second)
	providers := []domain.ProviderSpec{
		{ID: "p1", ApiHost: "hostA"},
	}

	_, err := f.Choose(ctx, "m", providers)
	require.NoError(t, err)

	_, err = f.Choose(ctx, "m", providers)
	require.ErrorIs(t, err, ErrNoProviderAvailable)
}

func TestFirstAvailableOptim_ReleaseDecrementsOccupancy(t *testing.T) {
	ctx := context.Background()
	store := coordination.NewMemoryStore()
	f := NewFirstAvailableOptim(store, time.Second)
	providers := []domain.ProviderSpec{{ID: "p1", ApiHost: "hostA"}}

	p, err := f.Choose(ctx, "m", providers)
	require.NoError(t, err)
	require.NoError(t, f.Release(ctx, "m", p.ID))

	n, err := store.HLen(ctx, "host:hostA")
	require.NoError(t, err)
	require.Equal(t, int64(0), n, "releasing the only lock on a host must drop its occupancy entry")
}
