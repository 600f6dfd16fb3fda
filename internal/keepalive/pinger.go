package keepalive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prism-gateway/llm-router/internal/apitype"
	"github.com/prism-gateway/llm-router/internal/core/domain"
	"github.com/prism-gateway/llm-router/internal/relay"
)

// keepAlivePrompt is posted verbatim as the only user message of a ping.
const keepAlivePrompt = "Send an empty message."

// pingTimeout bounds every individual ping request, independent of the
// request timeouts configured for real traffic.
const pingTimeout = 30 * time.Second

// RelayPinger sends the minimal keep-alive chat request §4.7 describes,
// reusing the same upstream relay real requests go through. The monitor
// only knows (model, host); RelayPinger resolves the full provider spec
// (api_type, token) by searching the catalog for a provider at that host.
type RelayPinger struct {
	Catalog *domain.Catalog
	Relay   *relay.Relay
}

// Ping implements ports.KeepAlivePinger.
func (p *RelayPinger) Ping(ctx context.Context, modelName string, provider domain.ProviderSpec) error {
	spec, ok := p.resolve(modelName, provider.ApiHost)
	if !ok {
		return fmt.Errorf("keepalive: no provider for model %q at host %q", modelName, provider.ApiHost)
	}

	route, err := apitype.Resolve(spec.ApiType, apitype.OpChat)
	if err != nil {
		return err
	}
	url := strings.TrimRight(spec.ApiHost, "/") + route.Path

	body := domain.NewEnvelope(nil)
	_ = body.Set("model", modelName)
	_ = body.SetRaw("messages", `[{"role":"user","content":"`+keepAlivePrompt+`"}]`)
	_ = body.Set("stream", false)
	_ = body.SetRaw("options", "{}")

	headers := map[string]string{}
	if spec.ApiToken != "" {
		headers["Authorization"] = "Bearer " + spec.ApiToken
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	_, err = p.Relay.Buffered(ctx, route.Method, url, body.Bytes(), headers)
	return err
}

// resolve finds the first provider (primary pool first, then sleeping)
// registered for modelName whose host matches.
func (p *RelayPinger) resolve(modelName, host string) (domain.ProviderSpec, bool) {
	entry, ok := p.Catalog.Entry(modelName)
	if !ok {
		return domain.ProviderSpec{}, false
	}
	for _, spec := range entry.Providers {
		if spec.ApiHost == host {
			return spec, true
		}
	}
	for _, spec := range entry.ProvidersSleep {
		if spec.ApiHost == host {
			return spec, true
		}
	}
	return domain.ProviderSpec{}, false
}
