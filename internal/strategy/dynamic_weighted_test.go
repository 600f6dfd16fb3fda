package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/prism-gateway/llm-router/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestDynamicWeighted_NoObservationsBehavesLikeWeighted(t *testing.T) {
	ctx := context.Background()
	d := NewDynamicWeighted()
	providers := []domain.ProviderSpec{
		{ID: "A", Weight: 3},
		{ID: "B", Weight: 1},
	}

	counts := map[string]int{}
	for i := 0; i < 8; i++ {
		p, err := d.Choose(ctx, "m", providers)
		require.NoError(t, err)
		counts[p.ID]++
	}

	require.Equal(t, 6, counts["A"])
	require.Equal(t, 2, counts["B"])
}

func TestDynamicWeighted_FastProviderFavoredAfterObservation(t *testing.T) {
	ctx := context.Background()
	d := NewDynamicWeighted().(*dynamicWeighted)
	providers := []domain.ProviderSpec{
		{ID: "A", Weight: 1},
		{ID: "B", Weight: 1},
	}

	for i := 0; i < 20; i++ {
		d.Observe(ctx, "m", "A", 10*time.Millisecond, true)
		d.Observe(ctx, "m", "B", 2*time.Second, true)
	}

	counts := map[string]int{}
	for i := 0; i < 20; i++ {
		p, err := d.Choose(ctx, "m", providers)
		require.NoError(t, err)
		counts[p.ID]++
	}

	require.Greater(t, counts["A"], counts["B"], "the consistently faster provider must be picked more often")
}

func TestDynamicWeighted_RepeatedFailuresPenalized(t *testing.T) {
	ctx := context.Background()
	d := NewDynamicWeighted().(*dynamicWeighted)

	d.Observe(ctx, "m", "A", 100*time.Millisecond, false)
	d.Observe(ctx, "m", "A", 100*time.Millisecond, false)
	d.Observe(ctx, "m", "A", 100*time.Millisecond, false)

	st := d.stats[statsKey("m", "A")]
	require.NotNil(t, st)
	require.Equal(t, 3, st.consecutiveFails)
	require.True(t, time.Now().Before(st.penalizedUntil))
}

func TestDynamicWeighted_SuccessResetsFailureStreak(t *testing.T) {
	ctx := context.Background()
	d := NewDynamicWeighted().(*dynamicWeighted)

	d.Observe(ctx, "m", "A", 100*time.Millisecond, false)
	d.Observe(ctx, "m", "A", 100*time.Millisecond, false)
	d.Observe(ctx, "m", "A", 100*time.Millisecond, true)

	st := d.stats[statsKey("m", "A")]
	require.Equal(t, 0, st.consecutiveFails)
}

func TestDynamicWeighted_NoProviders(t *testing.T) {
	_, err := NewDynamicWeighted().Choose(context.Background(), "m", nil)
	require.ErrorIs(t, err, ErrNoProviderAvailable)
}
