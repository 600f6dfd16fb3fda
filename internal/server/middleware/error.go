package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prism-gateway/llm-router/internal/core/domain"
	"go.uber.org/zap"
)

// ErrorHandler renders whatever c.Error recorded as a single RFC 9457
// problem+json body. Handlers never write error responses themselves;
// they call c.Error(err) (or abort via endpoint.abort) and let this
// middleware, installed last, translate it.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		if problem, ok := err.(*domain.Problem); ok {
			problem.Instance = RequestIDFrom(c)
			if problem.Log != nil {
				logger.Error("request failed", zap.Int("status", problem.Status), zap.String("title", problem.Title), zap.String("request_id", problem.Instance), zap.Error(problem.Log))
			}
			c.JSON(problem.Status, problem)
			return
		}

		logger.Error("unhandled request error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, domain.InternalError("an unexpected error occurred", err))
	}
}
