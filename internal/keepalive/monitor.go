// Package keepalive schedules periodic keep-alive pings for providers that
// declare a keep_alive duration, so the upstream runtime doesn't evict an
// idle model between bursts of traffic. Scheduling state lives in the
// coordination store (a sorted set of next-wakeup timestamps plus a hash
// per provider instance) so many gateway processes share one schedule.
package keepalive

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prism-gateway/llm-router/internal/core/domain"
	"github.com/prism-gateway/llm-router/internal/core/ports"
	"github.com/prism-gateway/llm-router/internal/store/coordination"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const wakeupZSetKey = "keepalive:providers:next_wakeup"

// IsHostFree reports whether host is currently idle for model, so the
// monitor can skip a ping against a provider mid-request rather than
// contending with it. A nil callback behaves as "always busy", matching
// the original monitor's conservative default.
type IsHostFree func(host, modelName string) bool

// minPingInterval bounds how often the monitor will ever ping one
// provider, regardless of its configured keep_alive, so a misconfigured
// very-short duration can't turn into a ping storm against one upstream.
const minPingInterval = 5 * time.Second

// Monitor owns the keep-alive schedule and the background loop that sends
// pings when providers come due.
type Monitor struct {
	store         coordination.Store
	pinger        ports.KeepAlivePinger
	isHostFree    IsHostFree
	checkInterval time.Duration
	logger        *zap.Logger

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// New builds a Monitor. checkInterval is how often the background loop
// polls the coordination store for due providers.
func New(store coordination.Store, pinger ports.KeepAlivePinger, isHostFree IsHostFree, checkInterval time.Duration, logger *zap.Logger) *Monitor {
	if isHostFree == nil {
		isHostFree = func(string, string) bool { return false }
	}
	return &Monitor{
		store:         store,
		pinger:        pinger,
		isHostFree:    isHostFree,
		checkInterval: checkInterval,
		logger:        logger,
		limiters:      make(map[string]*rate.Limiter),
	}
}

func providerHashKey(modelName, host string) string {
	return "keepalive:provider:" + modelName + ":" + host
}

func hostsSetKey(modelName string) string {
	return "keepalive:model:" + modelName + ":hosts"
}

func member(modelName, host string) string {
	return modelName + "|" + host
}

func splitMember(m string) (modelName, host string, ok bool) {
	idx := strings.Index(m, "|")
	if idx < 0 {
		return "", "", false
	}
	return m[:idx], m[idx+1:], true
}

// RecordUsage registers (or re-registers) a provider for keep-alive
// scheduling. A blank or unparsable keepAlive clears any existing schedule
// for this provider instead of erroring: the endpoint layer calls this
// after every successful selection regardless of whether the provider
// declares a keep_alive, so "no keep-alive configured" must be a no-op,
// not a failure.
func (m *Monitor) RecordUsage(ctx context.Context, modelName, host, keepAlive string) error {
	if modelName == "" || host == "" {
		return nil
	}

	mem := member(modelName, host)

	if strings.TrimSpace(keepAlive) == "" {
		return m.store.ZRem(ctx, wakeupZSetKey, mem)
	}

	dur, err := domain.ParseKeepAliveDuration(keepAlive)
	if err != nil {
		return m.store.ZRem(ctx, wakeupZSetKey, mem)
	}

	seconds := int64(dur.Seconds())
	if err := m.store.HSet(ctx, providerHashKey(modelName, host), map[string]string{
		"model_name":         modelName,
		"host":               host,
		"keep_alive_seconds": strconv.FormatInt(seconds, 10),
	}); err != nil {
		return err
	}

	if seconds <= 0 {
		return m.store.ZRem(ctx, wakeupZSetKey, mem)
	}

	if err := m.store.ZAdd(ctx, wakeupZSetKey, mem, float64(time.Now().Unix()+seconds)); err != nil {
		return err
	}
	return m.store.SAdd(ctx, hostsSetKey(modelName), host)
}

// Run polls the coordination store for due providers until ctx is
// canceled. It is meant to be started as its own goroutine from cmd/server.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	now := float64(time.Now().Unix())
	due, err := m.store.ZRangeByScore(ctx, wakeupZSetKey, 0, now)
	if err != nil {
		if m.logger != nil {
			m.logger.Warn("keepalive: failed to read due providers", zap.Error(err))
		}
		return
	}

	for _, entry := range due {
		modelName, host, ok := splitMember(entry.Member)
		if !ok {
			continue
		}
		m.tickOne(ctx, modelName, host, entry.Member)
	}
}

func (m *Monitor) tickOne(ctx context.Context, modelName, host, mem string) {
	raw, exists, err := m.store.HGet(ctx, providerHashKey(modelName, host), "keep_alive_seconds")
	if err != nil {
		return
	}
	seconds, _ := strconv.ParseInt(raw, 10, 64)
	if !exists || seconds <= 0 {
		_ = m.store.ZRem(ctx, wakeupZSetKey, mem)
		return
	}

	if !m.isHostFree(host, modelName) {
		_ = m.store.ZAdd(ctx, wakeupZSetKey, mem, float64(time.Now().Unix()+seconds))
		return
	}

	if !m.allow(modelName, host) {
		_ = m.store.ZAdd(ctx, wakeupZSetKey, mem, float64(time.Now().Unix()+seconds))
		return
	}

	if m.logger != nil {
		m.logger.Debug("keepalive: sending ping", zap.String("model", modelName), zap.String("host", host))
	}
	if err := m.pinger.Ping(ctx, modelName, domain.ProviderSpec{ApiHost: host}); err != nil && m.logger != nil {
		m.logger.Warn("keepalive: ping failed", zap.String("model", modelName), zap.String("host", host), zap.Error(err))
	}

	_ = m.store.ZAdd(ctx, wakeupZSetKey, mem, float64(time.Now().Unix()+seconds))
}

// allow applies the per-(model,host) rate limit floor on top of whatever
// cadence the provider's own keep_alive configures.
func (m *Monitor) allow(modelName, host string) bool {
	m.limiterMu.Lock()
	key := modelName + "|" + host
	lim, ok := m.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(minPingInterval), 1)
		m.limiters[key] = lim
	}
	m.limiterMu.Unlock()
	return lim.Allow()
}
