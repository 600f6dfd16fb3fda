package coordination

import (
	"context"
	"sort"
	"sync"
	"time"
)

// item is a TTL'd scalar, mirroring internal/adapters/cache/memory/memory.go's
// value/expiresAt pair.
type item struct {
	value     string
	expiresAt time.Time
	hasTTL    bool
}

func (it item) expired(now time.Time) bool {
	return it.hasTTL && now.After(it.expiresAt)
}

// memoryStore is a single-process Store used for local development and
// tests, where running a real Redis instance is unnecessary ceremony. One
// mutex guards every map: the same atomicity contract the Lua script gives
// redisStore falls out for free since there's no network round trip to race
// against.
type memoryStore struct {
	mu      sync.Mutex
	scalars map[string]item
	hashes  map[string]map[string]string
	sets    map[string]map[string]struct{}
	zsets   map[string]map[string]float64
}

// NewMemoryStore builds an in-process Store.
func NewMemoryStore() Store {
	return &memoryStore{
		scalars: make(map[string]item),
		hashes:  make(map[string]map[string]string),
		sets:    make(map[string]map[string]struct{}),
		zsets:   make(map[string]map[string]float64),
	}
}

func (m *memoryStore) sweepScalarLocked(key string) {
	if it, ok := m.scalars[key]; ok && it.expired(time.Now()) {
		delete(m.scalars, key)
	}
}

func (m *memoryStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepScalarLocked(key)
	if _, ok := m.scalars[key]; ok {
		return false, nil
	}
	it := item{value: value}
	if ttl > 0 {
		it.hasTTL = true
		it.expiresAt = time.Now().Add(ttl)
	}
	m.scalars[key] = it
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scalars, key)
	delete(m.hashes, key)
	delete(m.sets, key)
	delete(m.zsets, key)
	return nil
}

func (m *memoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.scalars[key]
	if !ok {
		return nil
	}
	it.hasTTL = true
	it.expiresAt = time.Now().Add(ttl)
	m.scalars[key] = it
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepScalarLocked(key)
	it, ok := m.scalars[key]
	if !ok {
		return "", false, nil
	}
	return it.value, true, nil
}

func (m *memoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scalars[key] = item{value: value}
	return nil
}

func (m *memoryStore) HSet(_ context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (m *memoryStore) HGet(_ context.Context, key, field string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		return "", false, nil
	}
	v, ok := h[field]
	return v, ok, nil
}

func (m *memoryStore) HDel(_ context.Context, key, field string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.hashes[key]; ok {
		delete(h, field)
		if len(h) == 0 {
			delete(m.hashes, key)
		}
	}
	return nil
}

func (m *memoryStore) hIncrByLocked(key, field string, delta int64) int64 {
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	cur := parseInt64(h[field])
	cur += delta
	h[field] = formatInt64(cur)
	return cur
}

func (m *memoryStore) HIncrBy(_ context.Context, key, field string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hIncrByLocked(key, field, delta), nil
}

func (m *memoryStore) HLen(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		return 0, nil
	}
	return int64(len(h)), nil
}

func (m *memoryStore) SAdd(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[key]
	if !ok {
		s = make(map[string]struct{})
		m.sets[key] = s
	}
	s[member] = struct{}{}
	return nil
}

func (m *memoryStore) SRem(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sets[key]; ok {
		delete(s, member)
		if len(s) == 0 {
			delete(m.sets, key)
		}
	}
	return nil
}

func (m *memoryStore) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[key]
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(s))
	for member := range s {
		out = append(out, member)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memoryStore) SIsMember(_ context.Context, key, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[key]
	if !ok {
		return false, nil
	}
	_, ok = s[member]
	return ok, nil
}

func (m *memoryStore) ZAdd(_ context.Context, key, member string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.zsets[key]
	if !ok {
		z = make(map[string]float64)
		m.zsets[key] = z
	}
	z[member] = score
	return nil
}

func (m *memoryStore) ZRangeByScore(_ context.Context, key string, min, max float64) ([]ZMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.zsets[key]
	if !ok {
		return nil, nil
	}
	var out []ZMember
	for member, score := range z {
		if score >= min && score <= max {
			out = append(out, ZMember{Member: member, Score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	return out, nil
}

func (m *memoryStore) ZRem(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if z, ok := m.zsets[key]; ok {
		delete(z, member)
		if len(z) == 0 {
			delete(m.zsets, key)
		}
	}
	return nil
}

func (m *memoryStore) AcquireOptim(_ context.Context, lockKey, lockValue string, ttl time.Duration, model, host string) (OptimAcquireResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepScalarLocked(lockKey)
	if _, exists := m.scalars[lockKey]; exists {
		return OptimAcquireResult{Acquired: false}, nil
	}

	it := item{value: lockValue}
	if ttl > 0 {
		it.hasTTL = true
		it.expiresAt = time.Now().Add(ttl)
	}
	m.scalars[lockKey] = it

	lastHostKey := "model:" + model + ":last_host"
	prior, _, _ := m.getScalarLocked(lastHostKey)
	m.scalars[lastHostKey] = item{value: host}

	hostsKey := "model:" + model + ":hosts"
	s, ok := m.sets[hostsKey]
	if !ok {
		s = make(map[string]struct{})
		m.sets[hostsKey] = s
	}
	s[host] = struct{}{}

	m.hIncrByLocked("host:"+host, model, 1)
	m.scalars[reverseHostKey(lockKey)] = item{value: host}

	return OptimAcquireResult{Acquired: true, PriorLastHost: prior}, nil
}

func reverseHostKey(lockKey string) string {
	return "lockhost:" + lockKey
}

func (m *memoryStore) getScalarLocked(key string) (string, bool, bool) {
	it, ok := m.scalars[key]
	if !ok {
		return "", false, false
	}
	return it.value, true, true
}

func (m *memoryStore) ReleaseOptim(_ context.Context, lockKey, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.scalars, lockKey)

	revKey := reverseHostKey(lockKey)
	hostItem, ok := m.scalars[revKey]
	if !ok {
		return nil
	}
	host := hostItem.value
	delete(m.scalars, revKey)

	hostKey := "host:" + host
	remaining := m.hIncrByLocked(hostKey, model, -1)
	if remaining <= 0 {
		if h, ok := m.hashes[hostKey]; ok {
			delete(h, model)
			if len(h) == 0 {
				delete(m.hashes, hostKey)
			}
		}
		hostsKey := "model:" + model + ":hosts"
		if s, ok := m.sets[hostsKey]; ok {
			delete(s, host)
			if len(s) == 0 {
				delete(m.sets, hostsKey)
			}
		}
	}
	return nil
}

func (m *memoryStore) Ping(_ context.Context) error {
	return nil
}
