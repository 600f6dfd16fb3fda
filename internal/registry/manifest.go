package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ManifestEntry is one declarative override for a registered endpoint,
// matched against init()-registered descriptors by (method, path).
type ManifestEntry struct {
	Path     string `yaml:"path"`
	Method   string `yaml:"method"`
	Enabled  *bool  `yaml:"enabled"`
	Strategy string `yaml:"strategy"`
}

// Manifest is the declarative registration manifest: a YAML sibling of
// the JSON catalog that can disable individual endpoints, or pin one to
// a selection strategy other than the gateway's default, without
// touching the Go code that registers them.
type Manifest struct {
	Endpoints []ManifestEntry `yaml:"endpoints"`
}

// LoadManifest reads a Manifest from path. A missing file is not an
// error: the zero Manifest leaves every init()-registered endpoint
// enabled under the engine's default strategy.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: reading manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("registry: parsing manifest %s: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) lookup(method, path string) (ManifestEntry, bool) {
	if m == nil {
		return ManifestEntry{}, false
	}
	for _, e := range m.Endpoints {
		if e.Method == method && e.Path == path {
			return e, true
		}
	}
	return ManifestEntry{}, false
}

// Enabled reports whether the endpoint at (method, path) should be
// bound. An endpoint absent from the manifest, or present with no
// "enabled" key, is enabled.
func (m *Manifest) Enabled(method, path string) bool {
	e, ok := m.lookup(method, path)
	if !ok || e.Enabled == nil {
		return true
	}
	return *e.Enabled
}

// StrategyFor returns the strategy name pinned to (method, path), or ""
// when the manifest does not override it for that endpoint.
func (m *Manifest) StrategyFor(method, path string) string {
	e, _ := m.lookup(method, path)
	return e.Strategy
}

// StrategyNames returns every distinct non-empty strategy name the
// manifest references, so callers can construct exactly the Choosers
// they need instead of one per possible strategy.
func (m *Manifest) StrategyNames() []string {
	if m == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var names []string
	for _, e := range m.Endpoints {
		if e.Strategy == "" {
			continue
		}
		if _, ok := seen[e.Strategy]; ok {
			continue
		}
		seen[e.Strategy] = struct{}{}
		names = append(names, e.Strategy)
	}
	return names
}
