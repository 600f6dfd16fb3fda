package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader is the response header carrying the id this middleware
// generates (or forwards, if the caller already supplied one).
const RequestIDHeader = "X-Request-Id"

// requestIDContextKey is the gin.Context key Logger and ErrorHandler read
// to tag log lines and Problem.Instance with the same id.
const requestIDContextKey = "request_id"

// RequestID assigns every request a uuid, reusing one supplied by the
// caller on RequestIDHeader instead of generating a fresh one so a
// request can be traced across a caller's own retries.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDContextKey, id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}

// RequestIDFrom returns the id RequestID attached to c, or "" if the
// middleware wasn't installed.
func RequestIDFrom(c *gin.Context) string {
	id, _ := c.Get(requestIDContextKey)
	s, _ := id.(string)
	return s
}
