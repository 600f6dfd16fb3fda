package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prism-gateway/llm-router/internal/core/domain"
	"github.com/prism-gateway/llm-router/internal/core/ports"
)

// dispatchMultiShot implements the call_for_each_user_msg mode: one
// upstream call per user message, all against the same already-selected
// provider, aggregated by the endpoint's PrepareResponseFunction.
// Streaming is disallowed; stream=true is coerced to false.
func (e *Engine) dispatchMultiShot(ctx context.Context, c *gin.Context, d *Descriptor, env *domain.Envelope, modelName string, provider domain.ProviderSpec, chooser ports.Chooser) {
	if env.Get("stream").Bool() {
		if e.Logger != nil {
			e.Logger.Info("endpoint: stream=true coerced to false for call_for_each_user_msg endpoint")
		}
	}

	userMessages := env.UserMessages()
	if len(userMessages) == 0 {
		abort(c, domain.RequestValidationError("messages", "call_for_each_user_msg requires at least one user message"))
		return
	}

	method, url, err := providerURL(provider, d.Operation)
	if err != nil {
		abort(c, domain.ApiTypeMismatchError(apiTypeNames(d.ApiTypes), string(provider.ApiType)))
		return
	}
	headers := authHeaders(provider)

	systemMsg := extractSystemMessage(env)

	responses := make([]*domain.Envelope, 0, len(userMessages))
	requestTexts := make([]string, 0, len(userMessages))

	for i, userMsg := range userMessages {
		subEnv := buildSubEnvelope(env, systemMsg, userMsg.Raw)

		if i > 0 && e.KeepAlive != nil {
			_ = e.KeepAlive.RecordUsage(ctx, modelName, provider.ApiHost, provider.KeepAlive)
		}

		upstreamCtx, cancel := context.WithTimeout(ctx, e.ExternalTimeout)
		start := time.Now()
		resp, err := e.Relay.Buffered(upstreamCtx, method, url, subEnv.Bytes(), headers)
		e.observeLatency(ctx, chooser, modelName, provider.ID, start, err == nil)
		cancel()
		if err != nil {
			abort(c, domain.UpstreamErrorResponse(0, "", err))
			return
		}

		responses = append(responses, resp)
		requestTexts = append(requestTexts, userMsg.Get("content").String())
	}

	aggregated, err := d.PrepareResponseFunction(responses, requestTexts)
	if err != nil {
		abort(c, domain.MisconfiguredEndpointError("prepare_response_function failed: "+err.Error()))
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", wrapResponse(aggregated))
}

func extractSystemMessage(env *domain.Envelope) string {
	raw := ""
	env.Get("messages").ForEach(func(_, msg jsonResult) bool {
		if msg.Get("role").String() == "system" {
			raw = msg.Raw
			return false
		}
		return true
	})
	return raw
}

func buildSubEnvelope(env *domain.Envelope, systemMsgRaw, userMsgRaw string) *domain.Envelope {
	sub := env.Clone()

	messages := "["
	if systemMsgRaw != "" {
		messages += systemMsgRaw + ","
	}
	messages += userMsgRaw + "]"

	_ = sub.SetRaw("messages", messages)
	_ = sub.Set("stream", false)
	return sub
}

// ExtractContent pulls whatever text an upstream chat response carries,
// across the three dialects this gateway speaks, for the aggregator's
// convenience. Builtin endpoints' single-shot response reshaping uses it
// too, since a single upstream call carries the same response shapes a
// multi-shot one does.
func ExtractContent(resp *domain.Envelope) string {
	if c := resp.Get("choices.0.message.content"); c.Exists() {
		return c.String()
	}
	if c := resp.Get("message.content"); c.Exists() {
		return c.String()
	}
	if c := resp.Get("response"); c.Exists() {
		return c.String()
	}
	return ""
}
