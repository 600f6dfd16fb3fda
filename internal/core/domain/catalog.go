package domain

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/hashicorp/go-version"
)

// supportedCatalogVersions bounds the optional top-level catalog_version
// field. A catalog with no catalog_version is treated as current and
// skips the check entirely, so existing catalogs written before this
// field existed keep loading unchanged.
const supportedCatalogVersions = ">= 1.0, < 2.0"

// envVarPattern matches ${VAR_NAME} references inside an api_token
// string, substituted from the process environment at load time.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

// ApiType is the upstream wire dialect spoken by a provider.
type ApiType string

const (
	ApiTypeOpenAI   ApiType = "openai"
	ApiTypeVLLM     ApiType = "vllm"
	ApiTypeOllama   ApiType = "ollama"
	ApiTypeLMStudio ApiType = "lmstudio"
	ApiTypeBuiltin  ApiType = "builtin"
)

// ProviderSpec describes one concrete upstream inference endpoint.
type ProviderSpec struct {
	ID          string  `json:"id"`
	ApiHost     string  `json:"api_host"`
	ApiToken    string  `json:"api_token,omitempty"`
	ApiType     ApiType `json:"api_type"`
	ModelPath   string  `json:"model_path,omitempty"`
	InputSize   int     `json:"input_size"`
	Weight      float64 `json:"weight"`
	KeepAlive   string  `json:"keep_alive,omitempty"`
	ToolCalling bool    `json:"tool_calling"`
}

// rawProviderSpec mirrors the JSON schema but keeps input_size as a raw
// message so it can be either a JSON number or a numeric string.
type rawProviderSpec struct {
	ID          string          `json:"id"`
	ApiHost     string          `json:"api_host"`
	ApiToken    string          `json:"api_token"`
	ApiType     string          `json:"api_type"`
	ModelPath   string          `json:"model_path"`
	InputSize   json.RawMessage `json:"input_size"`
	Weight      *float64        `json:"weight"`
	KeepAlive   string          `json:"keep_alive"`
	ToolCalling bool            `json:"tool_calling"`
}

func (r rawProviderSpec) resolve() (ProviderSpec, error) {
	spec := ProviderSpec{
		ID:          r.ID,
		ApiHost:     r.ApiHost,
		ApiToken:    substituteEnvVars(r.ApiToken),
		ApiType:     ApiType(r.ApiType),
		ModelPath:   r.ModelPath,
		KeepAlive:   r.KeepAlive,
		ToolCalling: r.ToolCalling,
		Weight:      1.0,
	}
	if r.Weight != nil {
		spec.Weight = *r.Weight
	}

	if len(r.InputSize) > 0 {
		var n int
		if err := json.Unmarshal(r.InputSize, &n); err == nil {
			spec.InputSize = n
		} else {
			var s string
			if err := json.Unmarshal(r.InputSize, &s); err != nil {
				return spec, fmt.Errorf("provider %q: input_size must be an integer or a numeric string", r.ID)
			}
			parsed, err := strconv.Atoi(s)
			if err != nil {
				return spec, fmt.Errorf("provider %q: input_size %q is not numeric", r.ID, s)
			}
			spec.InputSize = parsed
		}
	}

	return spec, nil
}

// ModelEntry holds the ordered provider pools for one model name.
type ModelEntry struct {
	Providers      []ProviderSpec `json:"providers"`
	ProvidersSleep []ProviderSpec `json:"providers_sleep"`
}

type rawModelEntry struct {
	Providers      []rawProviderSpec `json:"providers"`
	ProvidersSleep []rawProviderSpec `json:"providers_sleep"`
}

// Catalog is the loaded, queryable view of which models are active and
// which providers serve each.
type Catalog struct {
	// groups maps a model-type group (e.g. "chat", "embeddings") to its
	// model entries.
	groups map[string]map[string]ModelEntry
	// active maps a group to the set of model names exposed under it.
	active map[string][]string
}

// BadCatalogError reports a fatal problem encountered while loading the
// catalog file.
type BadCatalogError struct {
	Reason string
}

func (e *BadCatalogError) Error() string {
	return fmt.Sprintf("bad catalog: %s", e.Reason)
}

// Load reads the JSON catalog document at path and validates it against
// the invariants in the catalog loader's contract: active_models is
// mandatory, every active name must resolve, duplicate provider ids are a
// warning (not fatal), and input_size may be an int or a numeric string.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &BadCatalogError{Reason: fmt.Sprintf("reading %s: %v", path, err)}
	}
	return Parse(data)
}

// checkCatalogVersion validates an optional top-level catalog_version
// string against supportedCatalogVersions. Its absence is not an error:
// older catalogs written before this field existed are assumed current.
func checkCatalogVersion(top map[string]json.RawMessage) error {
	raw, ok := top["catalog_version"]
	if !ok {
		return nil
	}

	var verStr string
	if err := json.Unmarshal(raw, &verStr); err != nil {
		return &BadCatalogError{Reason: fmt.Sprintf("catalog_version: %v", err)}
	}

	v, err := version.NewVersion(verStr)
	if err != nil {
		return &BadCatalogError{Reason: fmt.Sprintf("catalog_version %q is not a valid version: %v", verStr, err)}
	}

	constraints, err := version.NewConstraint(supportedCatalogVersions)
	if err != nil {
		return &BadCatalogError{Reason: fmt.Sprintf("internal: bad supported-version constraint: %v", err)}
	}
	if !constraints.Check(v) {
		return &BadCatalogError{Reason: fmt.Sprintf("catalog_version %q is not in the supported range %q", verStr, supportedCatalogVersions)}
	}
	return nil
}

// Parse is the pure-function core of catalog loading: identical bytes in
// always produce an identical Catalog (or error) out.
func Parse(data []byte) (*Catalog, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, &BadCatalogError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	if err := checkCatalogVersion(top); err != nil {
		return nil, err
	}

	activeRaw, ok := top["active_models"]
	if !ok {
		return nil, &BadCatalogError{Reason: "top-level 'active_models' is mandatory"}
	}

	var active map[string][]string
	if err := json.Unmarshal(activeRaw, &active); err != nil {
		return nil, &BadCatalogError{Reason: fmt.Sprintf("active_models: %v", err)}
	}

	groups := make(map[string]map[string]ModelEntry)
	seenProviderIDs := make(map[string]int)

	for groupName := range active {
		groupRaw, ok := top[groupName]
		if !ok {
			return nil, &BadCatalogError{Reason: fmt.Sprintf("group %q listed in active_models but absent from the catalog", groupName)}
		}

		var rawEntries map[string]rawModelEntry
		if err := json.Unmarshal(groupRaw, &rawEntries); err != nil {
			return nil, &BadCatalogError{Reason: fmt.Sprintf("group %q: %v", groupName, err)}
		}

		entries := make(map[string]ModelEntry, len(rawEntries))
		for modelName, raw := range rawEntries {
			entry := ModelEntry{}
			for _, rp := range raw.Providers {
				spec, err := rp.resolve()
				if err != nil {
					return nil, &BadCatalogError{Reason: err.Error()}
				}
				seenProviderIDs[spec.ID]++
				entry.Providers = append(entry.Providers, spec)
			}
			for _, rp := range raw.ProvidersSleep {
				spec, err := rp.resolve()
				if err != nil {
					return nil, &BadCatalogError{Reason: err.Error()}
				}
				entry.ProvidersSleep = append(entry.ProvidersSleep, spec)
			}
			entries[modelName] = entry
		}
		groups[groupName] = entries
	}

	// Every name in active_models must resolve to a ModelEntry.
	for groupName, names := range active {
		for _, modelName := range names {
			if _, ok := groups[groupName][modelName]; !ok {
				return nil, &BadCatalogError{Reason: fmt.Sprintf("model %q listed in active_models[%q] but not defined", modelName, groupName)}
			}
		}
	}

	// Duplicate provider ids across the whole catalog are a warning, not
	// fatal: the (model, id) pair is what matters for selection/locking.
	// cmd/server/main.go logs DuplicateProviderIDs() once the catalog
	// finishes loading.

	return &Catalog{groups: groups, active: active}, nil
}

// DuplicateProviderIDs returns provider ids that appear more than once
// across the whole catalog, for callers that want to log a warning.
func (c *Catalog) DuplicateProviderIDs() []string {
	counts := make(map[string]int)
	for _, entries := range c.groups {
		for _, entry := range entries {
			for _, p := range entry.Providers {
				counts[p.ID]++
			}
			for _, p := range entry.ProvidersSleep {
				counts[p.ID]++
			}
		}
	}
	var dups []string
	for id, n := range counts {
		if n > 1 {
			dups = append(dups, id)
		}
	}
	return dups
}

// IsActive reports whether modelName is visible (listed under active_models
// for some group).
func (c *Catalog) IsActive(modelName string) bool {
	_, _, ok := c.find(modelName)
	return ok
}

// Entry returns the ModelEntry for an active model name.
func (c *Catalog) Entry(modelName string) (ModelEntry, bool) {
	entry, _, ok := c.find(modelName)
	return entry, ok
}

func (c *Catalog) find(modelName string) (ModelEntry, string, bool) {
	for groupName, names := range c.active {
		for _, name := range names {
			if name == modelName {
				entry, ok := c.groups[groupName][name]
				return entry, groupName, ok
			}
		}
	}
	return ModelEntry{}, "", false
}

// ActiveModelNames returns every active model name across every group,
// used by the /tags and /models listing endpoints.
func (c *Catalog) ActiveModelNames() []string {
	var names []string
	for _, group := range c.active {
		names = append(names, group...)
	}
	return names
}

// Provider resolves a single (model, providerID) pair to its spec,
// searching both the primary and sleep pools.
func (c *Catalog) Provider(modelName, providerID string) (ProviderSpec, bool) {
	entry, ok := c.Entry(modelName)
	if !ok {
		return ProviderSpec{}, false
	}
	for _, p := range entry.Providers {
		if p.ID == providerID {
			return p, true
		}
	}
	for _, p := range entry.ProvidersSleep {
		if p.ID == providerID {
			return p, true
		}
	}
	return ProviderSpec{}, false
}
