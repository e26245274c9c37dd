package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"competitor-knowledge/internal/shared/server/respond"
	"competitor-knowledge/internal/shared/telemetry"
)

// Recovery recovers from panics and returns a standardized error response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				reqID := RequestIDFromContext(c)
				telemetry.Error("http.panic", map[string]any{
					"request_id":  reqID,
					"error":       rec,
					"stack":       string(debug.Stack()),
					"route":       c.FullPath(),
					"path":        c.Request.URL.Path,
					"method":      c.Request.Method,
					"resource_id": c.Param("id"),
				})
				respond.Error(c, http.StatusInternalServerError, "internal", "Unexpected server error", nil)
				c.Abort()
			}
		}()
		c.Next()
	}
}
