package keepalive

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prism-gateway/llm-router/internal/core/domain"
	"github.com/prism-gateway/llm-router/internal/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func testCatalog(t *testing.T) *domain.Catalog {
	t.Helper()
	cat, err := domain.Parse([]byte(`{
		"active_models": {"chat": ["llama"]},
		"chat": {
			"llama": {
				"providers": [
					{"id": "p1", "api_host": "http://ollama-host:11434", "api_type": "ollama", "input_size": 4096}
				]
			}
		}
	}`))
	require.NoError(t, err)
	return cat
}

func TestRelayPinger_Ping_PostsKeepAlivePrompt(t *testing.T) {
	var gotPath string
	var gotBody string
	client := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		gotPath = req.URL.Path
		body, _ := io.ReadAll(req.Body)
		gotBody = string(body)
		return newResponse(200, `{"done":true}`), nil
	})

	pinger := &RelayPinger{Catalog: testCatalog(t), Relay: relay.New(client)}
	err := pinger.Ping(context.Background(), "llama", domain.ProviderSpec{ApiHost: "http://ollama-host:11434"})
	require.NoError(t, err)

	assert.Contains(t, gotBody, "Send an empty message.")
	assert.NotEmpty(t, gotPath)
}

func TestRelayPinger_Ping_UnknownHostErrors(t *testing.T) {
	client := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		t.Fatal("must not call upstream for an unresolvable host")
		return nil, nil
	})

	pinger := &RelayPinger{Catalog: testCatalog(t), Relay: relay.New(client)}
	err := pinger.Ping(context.Background(), "llama", domain.ProviderSpec{ApiHost: "http://no-such-host:1"})
	assert.Error(t, err)
}
