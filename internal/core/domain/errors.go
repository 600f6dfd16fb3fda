package domain

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Problem implements RFC 9457 and is the single error shape surfaced to
// clients of the gateway. Every named error in the routing engine's error
// taxonomy (see the gateway's error handling design) is a constructor
// that returns one of these.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]interface{} `json:"-"`

	// Log carries an internal error for server-side-only logging. It never
	// reaches the client.
	Log error `json:"-"`
}

func (p *Problem) Error() string {
	return fmt.Sprintf("[%d] %s: %s", p.Status, p.Title, p.Detail)
}

func (p *Problem) Unwrap() error {
	return p.Log
}

func (p *Problem) MarshalJSON() ([]byte, error) {
	type Alias Problem

	data := make(map[string]interface{})
	for k, v := range p.Extensions {
		data[k] = v
	}

	stdJSON, _ := json.Marshal((*Alias)(p))
	_ = json.Unmarshal(stdJSON, &data)

	return json.Marshal(map[string]interface{}{
		"status": false,
		"error":  data,
	})
}

type ProblemOption func(*Problem)

// New creates a generic Problem.
func New(status int, title, detail string, opts ...ProblemOption) *Problem {
	p := &Problem{
		Type:       "about:blank",
		Title:      title,
		Status:     status,
		Detail:     detail,
		Extensions: make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithExtension adds a custom key-value pair to the response.
func WithExtension(key string, value interface{}) ProblemOption {
	return func(p *Problem) { p.Extensions[key] = value }
}

// WithLog attaches an internal error for server-side logging.
func WithLog(err error) ProblemOption {
	return func(p *Problem) { p.Log = err }
}

// WithType sets the RFC "type" URI.
func WithType(uri string) ProblemOption {
	return func(p *Problem) { p.Type = uri }
}

// BadRequestError: malformed JSON, unknown content type.
func BadRequestError(detail string) *Problem {
	return New(http.StatusBadRequest, "Bad Request", detail,
		WithExtension("code", "BadRequest"))
}

// MissingParamError: a REQUIRED_ARGS name is absent or null.
func MissingParamError(name string) *Problem {
	return New(http.StatusBadRequest, "Missing Parameter",
		fmt.Sprintf("required parameter %q is missing", name),
		WithExtension("code", "MissingParam"),
		WithExtension("name", name))
}

// RequestValidationError: a value failed endpoint-specific validation.
func RequestValidationError(field, reason string) *Problem {
	return New(http.StatusBadRequest, "Validation Error", reason,
		WithExtension("code", "ValidationError"),
		WithExtension("field", field))
}

// AuthRequiredError: bearer token missing when required by the upstream.
func AuthRequiredError(detail string) *Problem {
	return New(http.StatusUnauthorized, "Authentication Required", detail,
		WithExtension("code", "AuthRequired"))
}

// ForbiddenError: bearer token invalid/insufficient.
func ForbiddenError(detail string) *Problem {
	return New(http.StatusForbidden, "Forbidden", detail,
		WithExtension("code", "Forbidden"))
}

// GuardrailBlockedError: request or response violated a guardrail.
func GuardrailBlockedError(reason string) *Problem {
	return New(http.StatusUnavailableForLegalReasons, "Guardrail Blocked", reason,
		WithExtension("code", "GuardrailBlocked"),
		WithExtension("reason", reason))
}

// NoProviderAvailableError: catalog has no active provider, or all locks busy.
func NoProviderAvailableError(modelName string) *Problem {
	return New(http.StatusServiceUnavailable, "No Provider Available",
		fmt.Sprintf("no provider available for model %q", modelName),
		WithExtension("code", "NoProviderAvailable"))
}

// StoreUnavailableError: the coordination store is required and unreachable.
func StoreUnavailableError(err error) *Problem {
	return New(http.StatusServiceUnavailable, "Coordination Store Unavailable",
		"the coordination store required by the selected strategy is unreachable",
		WithExtension("code", "StoreUnavailable"),
		WithLog(err))
}

// UpstreamTimeoutError: deadline exceeded on the upstream leg.
func UpstreamTimeoutError(modelName string) *Problem {
	return New(http.StatusGatewayTimeout, "Upstream Timeout",
		fmt.Sprintf("upstream call for model %q exceeded its deadline", modelName),
		WithExtension("code", "UpstreamTimeout"))
}

// UpstreamErrorResponse: upstream returned >= 500 or a malformed response.
func UpstreamErrorResponse(status int, body string, err error) *Problem {
	return New(http.StatusBadGateway, "Upstream Error", body,
		WithExtension("code", "UpstreamError"),
		WithExtension("upstream_status", status),
		WithLog(err))
}

// ApiTypeMismatchError: endpoint cannot target the selected provider.
func ApiTypeMismatchError(endpointTypes []string, providerType string) *Problem {
	return New(http.StatusBadGateway, "Api Type Mismatch",
		fmt.Sprintf("endpoint accepts %v but provider speaks %q", endpointTypes, providerType),
		WithExtension("code", "ApiTypeMismatch"))
}

// MisconfiguredEndpointError: internal invariant broken (e.g. multi-shot
// without an aggregator).
func MisconfiguredEndpointError(detail string) *Problem {
	return New(http.StatusInternalServerError, "Misconfigured Endpoint", detail,
		WithExtension("code", "MisconfiguredEndpoint"))
}

// InternalError is the catch-all.
func InternalError(msg string, err error) *Problem {
	return New(http.StatusInternalServerError, "Internal Error", msg,
		WithExtension("code", "Internal"),
		WithLog(err))
}
