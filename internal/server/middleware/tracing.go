package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Tracing wraps otelgin so every route gets a span under serviceName.
// With no tracer provider installed (telemetry.InitTracer not called),
// otelgin falls back to the global no-op provider, so this is safe to
// register unconditionally.
func Tracing(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}
