package strategy

import (
	"context"
	"time"

	"github.com/prism-gateway/llm-router/internal/core/domain"
	"github.com/prism-gateway/llm-router/internal/store/coordination"
)

// firstAvailableOptim adds three optimisation passes in front of
// first_available: reuse the host that served the model last, then any
// other host already known to run it, then spread to a host with no
// active occupancy at all, before falling back to plain first_available.
// Every acquisition and its bookkeeping (last_host, host set, host
// occupancy hash) is applied atomically by the coordination store.
type firstAvailableOptim struct {
	store    coordination.Store
	fallback Chooser
	ttlFor   func() time.Duration
}

// NewFirstAvailableOptim builds the host-affinity-aware strategy.
func NewFirstAvailableOptim(store coordination.Store, requestTimeout time.Duration) Chooser {
	return &firstAvailableOptim{
		store:    store,
		fallback: NewFirstAvailable(store, requestTimeout),
		ttlFor:   func() time.Duration { return requestTimeout + lockTTLSlack },
	}
}

func (f *firstAvailableOptim) Name() string { return "first_available_optim" }

func (f *firstAvailableOptim) Choose(ctx context.Context, modelName string, providers []domain.ProviderSpec) (domain.ProviderSpec, error) {
	if len(providers) == 0 {
		return domain.ProviderSpec{}, ErrNoProviderAvailable
	}

	ttl := f.ttlFor()

	lastHost, hasLastHost, err := f.store.Get(ctx, lastHostKey(modelName))
	if err != nil {
		return domain.ProviderSpec{}, err
	}

	// Step 1: reuse the host that served this model most recently. A
	// last_host that no longer names any of the model's current providers
	// is a stale cache entry, not just an occupied one: delete it so the
	// next acquire doesn't keep consulting a host the model was moved off
	// of, then fall through to step 2.
	if hasLastHost && lastHost != "" {
		stillPresent := false
		for _, p := range providers {
			if p.ApiHost != lastHost {
				continue
			}
			stillPresent = true
			res, err := f.store.AcquireOptim(ctx, lockKey(modelName, p.ID), lockValue(), ttl, modelName, p.ApiHost)
			if err != nil {
				return domain.ProviderSpec{}, err
			}
			if res.Acquired {
				return p, nil
			}
		}
		if !stillPresent {
			if err := f.store.Del(ctx, lastHostKey(modelName)); err != nil {
				return domain.ProviderSpec{}, err
			}
		}
	}

	knownHosts, err := f.store.SMembers(ctx, hostsKey(modelName))
	if err != nil {
		return domain.ProviderSpec{}, err
	}
	known := make(map[string]struct{}, len(knownHosts))
	for _, h := range knownHosts {
		known[h] = struct{}{}
	}

	// Step 2: any other host already known to run this model.
	for _, p := range providers {
		if p.ApiHost == lastHost {
			continue
		}
		if _, ok := known[p.ApiHost]; !ok {
			continue
		}
		res, err := f.store.AcquireOptim(ctx, lockKey(modelName, p.ID), lockValue(), ttl, modelName, p.ApiHost)
		if err != nil {
			return domain.ProviderSpec{}, err
		}
		if res.Acquired {
			return p, nil
		}
	}

	// Step 3: spread to a host with no active occupancy at all.
	for _, p := range providers {
		if _, ok := known[p.ApiHost]; ok {
			continue
		}
		occupancy, err := f.store.HLen(ctx, hostOccupancyKey(p.ApiHost))
		if err != nil {
			return domain.ProviderSpec{}, err
		}
		if occupancy > 0 {
			continue
		}
		res, err := f.store.AcquireOptim(ctx, lockKey(modelName, p.ID), lockValue(), ttl, modelName, p.ApiHost)
		if err != nil {
			return domain.ProviderSpec{}, err
		}
		if res.Acquired {
			return p, nil
		}
	}

	// Step 4: fall back to plain first-available semantics.
	return f.fallback.Choose(ctx, modelName, providers)
}

func (f *firstAvailableOptim) Release(ctx context.Context, modelName, providerID string) error {
	return f.store.ReleaseOptim(ctx, lockKey(modelName, providerID), modelName)
}

func lastHostKey(modelName string) string {
	return "model:" + modelName + ":last_host"
}

func hostsKey(modelName string) string {
	return "model:" + modelName + ":hosts"
}

func hostOccupancyKey(host string) string {
	return "host:" + host
}
