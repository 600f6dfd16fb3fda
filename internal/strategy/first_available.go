package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/prism-gateway/llm-router/internal/core/domain"
	"github.com/prism-gateway/llm-router/internal/store/coordination"
)

// lockTTLSlack is added on top of the request timeout when acquiring a
// (model, provider) lock, so a lock never expires mid-response under
// normal conditions.
const lockTTLSlack = 5 * time.Second

// lockKey is the coordination-store key for one (model, provider) pair.
func lockKey(modelName, providerID string) string {
	return "lock:" + modelName + ":" + providerID
}

func lockValue() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// firstAvailable acquires the first provider in list order whose
// (model, provider-id) lock can be taken in the coordination store. It
// requires the store; if the store is unreachable the request fails
// rather than silently degrading to an unsafe single-process fallback.
type firstAvailable struct {
	store      coordination.Store
	lockTTLFor func() time.Duration
}

// NewFirstAvailable builds the lock-based first-fit strategy. requestTimeout
// is the upstream call budget; the store lock TTL is requestTimeout + 5s so
// it always outlives a well-behaved request.
func NewFirstAvailable(store coordination.Store, requestTimeout time.Duration) Chooser {
	return &firstAvailable{
		store:      store,
		lockTTLFor: func() time.Duration { return requestTimeout + lockTTLSlack },
	}
}

func (f *firstAvailable) Name() string { return "first_available" }

func (f *firstAvailable) Choose(ctx context.Context, modelName string, providers []domain.ProviderSpec) (domain.ProviderSpec, error) {
	if len(providers) == 0 {
		return domain.ProviderSpec{}, ErrNoProviderAvailable
	}

	ttl := f.lockTTLFor()
	for _, p := range providers {
		acquired, err := f.store.SetNX(ctx, lockKey(modelName, p.ID), lockValue(), ttl)
		if err != nil {
			return domain.ProviderSpec{}, err
		}
		if acquired {
			return p, nil
		}
	}
	return domain.ProviderSpec{}, ErrNoProviderAvailable
}

func (f *firstAvailable) Release(ctx context.Context, modelName, providerID string) error {
	return f.store.Del(ctx, lockKey(modelName, providerID))
}
