package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"registrar-backend/internal/shared/metrics"
	"registrar-backend/internal/shared/telemetry"
)

// Context keys handlers set so the request log can carry domain fields.
const (
	DocumentRequestIDKey = "documentRequestId"
	StatusTransitionKey  = "statusTransition"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, status, latency)

		telemetry.Info("request.complete", map[string]any{
			"request_id":          RequestIDFromContext(c),
			"method":              c.Request.Method,
			"path":                c.Request.URL.Path,
			"route":               route,
			"status":              status,
			"status_transition":   c.GetString(StatusTransitionKey),
			"duration_ms":         float64(latency.Microseconds()) / 1000.0,
			"user_id":             UserIDFromContext(c),
			"role":                UserRoleFromContext(c),
			"document_request_id": c.GetString(DocumentRequestIDKey),
			"client_ip":           c.ClientIP(),
			"user_agent":          c.Request.UserAgent(),
		})
	}
}
