package strategy

import (
	"context"
	"sync"

	"github.com/prism-gateway/llm-router/internal/core/domain"
)

// balanced picks the provider with the smallest per-model usage counter,
// ties broken by list order, and increments it. No coordination-store
// access: correctness only needs to hold within one process, since the
// counters are an approximation of fairness, not a hard lock.
type balanced struct {
	mu       sync.Mutex
	counters map[string]map[string]int64
}

// NewBalanced builds the least-usage round-robin strategy.
func NewBalanced() Chooser {
	return &balanced{counters: make(map[string]map[string]int64)}
}

func (b *balanced) Name() string { return "balanced" }

func (b *balanced) Choose(_ context.Context, modelName string, providers []domain.ProviderSpec) (domain.ProviderSpec, error) {
	if len(providers) == 0 {
		return domain.ProviderSpec{}, ErrNoProviderAvailable
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	counts, ok := b.counters[modelName]
	if !ok {
		counts = make(map[string]int64)
		b.counters[modelName] = counts
	}

	best := providers[0]
	bestCount := counts[best.ID]
	for _, p := range providers[1:] {
		if c := counts[p.ID]; c < bestCount {
			best = p
			bestCount = c
		}
	}

	counts[best.ID]++
	renormalizeLocked(counts)
	return best, nil
}

// renormalizeLocked subtracts the minimum counter from every entry once
// values grow large enough that the subtraction is worth the pass; this
// keeps long-lived processes from growing int64 counters without bound.
// It never changes the relative ordering the selection depends on.
func renormalizeLocked(counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	const renormalizeThreshold = 1 << 40
	min := int64(-1)
	for _, c := range counts {
		if min == -1 || c < min {
			min = c
		}
	}
	if min < renormalizeThreshold {
		return
	}
	for id := range counts {
		counts[id] -= min
	}
}

func (b *balanced) Release(_ context.Context, _, _ string) error {
	return nil
}
