package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prism-gateway/llm-router/internal/apitype"
	"github.com/prism-gateway/llm-router/internal/core/domain"
	"github.com/prism-gateway/llm-router/internal/core/ports"
	"github.com/prism-gateway/llm-router/internal/relay"
	"github.com/prism-gateway/llm-router/internal/store/coordination"
	"go.uber.org/zap"
)

// Handler builds the gin.HandlerFunc that runs d's full request
// lifecycle against e's collaborators.
func (e *Engine) Handler(d *Descriptor) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), e.RequestTimeout)
		defer cancel()

		env, err := parseRequest(c, d)
		if err != nil {
			abort(c, err)
			return
		}

		if err := validateRequired(env, d.RequiredArgs); err != nil {
			abort(c, err)
			return
		}

		if err := e.runMaskingHook(ctx, env); err != nil {
			abort(c, err)
			return
		}

		if blocked, err := e.runGuardrailHook(ctx, env); err != nil {
			abort(c, err)
			return
		} else if blocked != nil {
			abort(c, blocked)
			return
		}

		prepared, err := e.preparePayload(ctx, d, env)
		if err != nil {
			abort(c, domain.InternalError("prepare_payload failed", err))
			return
		}

		if status := prepared.Envelope.Get("status"); status.Exists() && !status.Bool() {
			writeEnvelope(c, http.StatusOK, prepared.Envelope)
			return
		}

		if d.DirectReturn {
			writeEnvelope(c, http.StatusOK, prepared.Envelope)
			return
		}

		if d.SystemPromptName != nil || prepared.PromptForce != "" {
			text, err := resolveSystemPrompt(ctx, e.Prompts, d, prepared.Envelope, prepared, e.DefaultLanguage)
			if err != nil && err != ports.ErrPromptNotFound {
				abort(c, domain.InternalError("system prompt resolution failed", err))
				return
			}
			if text != "" {
				if err := prependSystemMessage(prepared.Envelope, text); err != nil {
					abort(c, domain.InternalError("failed to inject system prompt", err))
					return
				}
			}
		}

		modelName := resolveModelName(prepared.Envelope)
		if modelName == "" {
			abort(c, domain.MissingParamError("model"))
			return
		}

		entry, ok := e.Catalog.Entry(modelName)
		if !ok || len(entry.Providers) == 0 {
			abort(c, domain.NoProviderAvailableError(modelName))
			return
		}

		chooser := d.chooserFor(e)
		provider, err := chooser.Choose(ctx, modelName, entry.Providers)
		if err != nil {
			if errors.Is(err, coordination.ErrUnavailable) {
				abort(c, domain.StoreUnavailableError(err))
				return
			}
			abort(c, domain.NoProviderAvailableError(modelName))
			return
		}
		released := false
		release := func() {
			if released {
				return
			}
			released = true
			_ = chooser.Release(context.Background(), modelName, provider.ID)
		}
		defer release()

		if e.KeepAlive != nil {
			_ = e.KeepAlive.RecordUsage(ctx, modelName, provider.ApiHost, provider.KeepAlive)
		}

		if !d.IsBuiltin() && !d.AcceptsApiType(provider.ApiType) {
			abort(c, domain.ApiTypeMismatchError(apiTypeNames(d.ApiTypes), string(provider.ApiType)))
			return
		}

		if d.CallForEachUserMsg {
			e.dispatchMultiShot(ctx, c, d, prepared.Envelope, modelName, provider, chooser)
			return
		}

		e.dispatchSingleShot(ctx, c, d, prepared.Envelope, modelName, provider, chooser)
	}
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func apiTypeNames(types map[domain.ApiType]struct{}) []string {
	out := make([]string, 0, len(types))
	for t := range types {
		out = append(out, string(t))
	}
	return out
}

func resolveModelName(env *domain.Envelope) string {
	if m := env.Get("model").String(); m != "" {
		return m
	}
	return env.Get("model_name").String()
}

// parseRequest implements step 1: JSON body for POST, query string for GET.
func parseRequest(c *gin.Context, d *Descriptor) (*domain.Envelope, error) {
	if c.Request.Method == http.MethodGet {
		fields := map[string]interface{}{}
		for key, values := range c.Request.URL.Query() {
			if len(values) == 1 {
				fields[key] = values[0]
			} else {
				fields[key] = values
			}
		}
		data, err := json.Marshal(fields)
		if err != nil {
			return nil, domain.BadRequestError("failed to parse query parameters")
		}
		return domain.NewEnvelope(data), nil
	}

	ct := c.GetHeader("Content-Type")
	if ct != "" && !strings.Contains(ct, "application/json") {
		return nil, domain.BadRequestError("unsupported content type: " + ct)
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, domain.BadRequestError("failed to read request body")
	}
	if len(data) == 0 {
		data = []byte("{}")
	}
	if !json.Valid(data) {
		return nil, domain.BadRequestError("request body is not valid JSON")
	}
	return domain.NewEnvelope(data), nil
}

// validateRequired implements step 2.
func validateRequired(env *domain.Envelope, required []string) error {
	for _, name := range required {
		if !env.Has(name) {
			return domain.MissingParamError(name)
		}
	}
	return nil
}

// preparePayload implements step 5 (identity when d.PreparePayload is nil).
func (e *Engine) preparePayload(ctx context.Context, d *Descriptor, env *domain.Envelope) (PrepareResult, error) {
	if d.PreparePayload == nil {
		return PrepareResult{Envelope: env}, nil
	}
	return d.PreparePayload(ctx, env)
}

func writeEnvelope(c *gin.Context, status int, env *domain.Envelope) {
	c.Data(status, "application/json; charset=utf-8", env.Bytes())
}

// wrapResponse implements the {status: true, body: ...} envelope step 13
// requires for a successful non-streaming upstream call.
func wrapResponse(body *domain.Envelope) []byte {
	out := domain.NewEnvelope(nil)
	_ = out.Set("status", true)
	_ = out.SetRaw("body", string(body.Bytes()))
	return out.Bytes()
}

func providerURL(provider domain.ProviderSpec, op apitype.Operation) (string, string, error) {
	route, err := apitype.Resolve(provider.ApiType, op)
	if err != nil {
		return "", "", err
	}
	host := strings.TrimRight(provider.ApiHost, "/")
	return route.Method, host + route.Path, nil
}

func authHeaders(provider domain.ProviderSpec) map[string]string {
	headers := map[string]string{}
	if provider.ApiToken != "" {
		headers["Authorization"] = "Bearer " + provider.ApiToken
	}
	return headers
}

func streamDialectFor(apiType domain.ApiType) relay.Dialect {
	if apiType == domain.ApiTypeOllama {
		return relay.DialectNDJSON
	}
	return relay.DialectSSE
}

func wantsStream(env *domain.Envelope) bool {
	if !env.Has("stream") {
		return true
	}
	return env.Get("stream").Bool()
}

func (e *Engine) observeLatency(ctx context.Context, chooser ports.Chooser, modelName, providerID string, start time.Time, success bool) {
	observer, ok := chooser.(ports.LatencyObserver)
	if !ok {
		return
	}
	observer.Observe(ctx, modelName, providerID, time.Since(start), success)
}

// dispatchSingleShot implements steps 9-13 for the common case of one
// upstream call.
func (e *Engine) dispatchSingleShot(ctx context.Context, c *gin.Context, d *Descriptor, env *domain.Envelope, modelName string, provider domain.ProviderSpec, chooser ports.Chooser) {
	if provider.ApiType == domain.ApiTypeBuiltin {
		writeEnvelope(c, http.StatusOK, env)
		return
	}

	method, url, err := providerURL(provider, d.Operation)
	if err != nil {
		abort(c, domain.ApiTypeMismatchError(apiTypeNames(d.ApiTypes), string(provider.ApiType)))
		return
	}

	streaming := d.Operation == apitype.OpChat && wantsStream(env)
	headers := authHeaders(provider)
	start := time.Now()

	if streaming {
		dialect := streamDialectFor(provider.ApiType)
		c.Status(http.StatusOK)
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")

		upstreamCtx, upstreamCancel := context.WithTimeout(ctx, e.ExternalTimeout)
		defer upstreamCancel()

		err := e.Relay.Stream(upstreamCtx, method, url, env.Bytes(), headers, dialect, func(chunk relay.Chunk) error {
			if len(chunk.Data) > 0 {
				if _, werr := c.Writer.Write(chunk.Data); werr != nil {
					return werr
				}
				c.Writer.Flush()
			}
			return nil
		})
		e.observeLatency(ctx, chooser, modelName, provider.ID, start, err == nil)
		if err != nil && e.Logger != nil {
			e.Logger.Warn("endpoint: stream relay ended with error", zap.String("model", modelName), zap.Error(err))
			errChunk := relay.ErrorChunk(dialect, err.Error())
			_, _ = c.Writer.Write(errChunk.Data)
			c.Writer.Flush()
		}
		return
	}

	upstreamCtx, upstreamCancel := context.WithTimeout(ctx, e.ExternalTimeout)
	defer upstreamCancel()

	resp, err := e.Relay.Buffered(upstreamCtx, method, url, env.Bytes(), headers)
	e.observeLatency(ctx, chooser, modelName, provider.ID, start, err == nil)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			abort(c, domain.UpstreamTimeoutError(modelName))
			return
		}
		if upErr, ok := err.(*relay.UpstreamError); ok {
			abort(c, domain.UpstreamErrorResponse(upErr.Status, string(upErr.Body), err))
			return
		}
		abort(c, domain.UpstreamErrorResponse(0, "", err))
		return
	}

	if e.GuardrailEnabled {
		if blocked, err := e.runGuardrailResponseHook(ctx, resp); err != nil {
			abort(c, err)
			return
		} else if blocked != nil {
			abort(c, blocked)
			return
		}
	}

	if d.PrepareSingleResponseFunc != nil {
		reshaped, err := d.PrepareSingleResponseFunc(resp, time.Since(start))
		if err != nil {
			abort(c, domain.MisconfiguredEndpointError("prepare_response_function failed: "+err.Error()))
			return
		}
		resp = reshaped
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", wrapResponse(resp))
}
