// Package registry is the auto-registration point for concrete
// endpoints: each one calls Register from its own init(), and
// internal/server binds every registered descriptor onto the Gin router
// at startup. This mirrors the teacher's provider factory registry,
// generalized from "provider type -> constructor" to "path -> endpoint".
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/prism-gateway/llm-router/internal/endpoint"
)

var (
	mu    sync.RWMutex
	descs = make(map[string]*endpoint.Descriptor)
)

func key(method, path string) string {
	return method + " " + path
}

// Register makes d available for binding. It panics on an invalid
// descriptor or a duplicate (method, path) pair: both are startup-time
// configuration errors, not runtime conditions callers should handle.
func Register(d *endpoint.Descriptor) {
	if err := d.Validate(); err != nil {
		panic(fmt.Sprintf("registry: %v", err))
	}

	mu.Lock()
	defer mu.Unlock()

	k := key(d.Method, d.Path)
	if _, exists := descs[k]; exists {
		panic(fmt.Sprintf("registry: endpoint %s already registered", k))
	}
	descs[k] = d
}

// All returns every registered descriptor, sorted by (method, path) for
// deterministic route-binding order.
func All() []*endpoint.Descriptor {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]*endpoint.Descriptor, 0, len(descs))
	for _, d := range descs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Method != out[j].Method {
			return out[i].Method < out[j].Method
		}
		return out[i].Path < out[j].Path
	})
	return out
}
