// Package coordination wraps the external fast key-value store used by the
// locking selection strategies (first_available, first_available_optim)
// and the keep-alive monitor. It is a thin typed facade: hashes, sorted
// sets, atomic compare-and-set locks, and a server-side scripted block for
// the multi-key first_available_optim updates.
package coordination

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned by every Store method when the backing store
// cannot be reached. Strategies that require the store (first_available*,
// keep-alive) propagate it unwrapped from Choose; the dispatch handler
// maps it to domain.StoreUnavailableError via errors.Is. Strategies that
// don't need the store (balanced, weighted, dynamic_weighted) never call
// it and keep working through an outage.
var ErrUnavailable = errors.New("coordination store unavailable")

// ZMember is one entry of a sorted-set range query.
type ZMember struct {
	Member string
	Score  float64
}

// OptimAcquireResult is the outcome of the atomic, multi-key
// first_available_optim acquisition script.
type OptimAcquireResult struct {
	Acquired bool
	// PriorLastHost is whatever model:{m}:last_host held before this call,
	// "" if unset.
	PriorLastHost string
}

// Store is the coordination primitive set required by §4.4. Every method
// must tolerate concurrent callers across many processes; compound
// operations (the optim-strategy updates) must be atomic end-to-end,
// either via a server-side script or an equivalent transactional path —
// never a chain of independently-racing client calls.
type Store interface {
	// SetNX acquires key with value, succeeding only if key was absent.
	// It is the primitive first_available uses for its (model, provider)
	// lock.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (acquired bool, err error)
	// Del removes key unconditionally (no error if absent).
	Del(ctx context.Context, key string) error
	// Expire resets key's TTL without changing its value.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	HSet(ctx context.Context, key string, fields map[string]string) error
	HGet(ctx context.Context, key, field string) (string, bool, error)
	HDel(ctx context.Context, key, field string) error
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)
	// HLen reports how many fields a hash currently has, used by
	// first_available_optim to detect whether a host has any active
	// occupancy at all (an absent or empty host:{host} hash means none).
	HLen(ctx context.Context, key string) (int64, error)

	SAdd(ctx context.Context, key, member string) error
	SRem(ctx context.Context, key, member string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)

	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error

	ZAdd(ctx context.Context, key string, member string, score float64) error
	ZRangeByScore(ctx context.Context, key string, min, max float64) ([]ZMember, error)
	ZRem(ctx context.Context, key, member string) error

	// AcquireOptim runs the atomic multi-key update first_available_optim
	// needs on a successful lock acquisition: SetNX the (model, providerID)
	// lock, then set last_host, add host to the model's host set, and
	// increment host:{host}[model]. Implementations must apply all of
	// this atomically; a partially applied update is a fatal invariant
	// violation.
	AcquireOptim(ctx context.Context, lockKey, lockValue string, ttl time.Duration, model, host string) (OptimAcquireResult, error)

	// ReleaseOptim is the inverse bookkeeping step: release the lock,
	// decrement host:{host}[model], and drop model from the host's set
	// if the count reaches zero. The host is resolved from the reverse
	// index AcquireOptim recorded for lockKey, so callers don't need to
	// carry the host alongside the (model, providerID) pair.
	ReleaseOptim(ctx context.Context, lockKey, model string) error

	// Ping reports whether the store is reachable right now.
	Ping(ctx context.Context) error
}
