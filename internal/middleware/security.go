package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/karthickraja0810/clinical-decision-support/internal/domain"
)

// CorrelationIDKey is the gin context key holding the request's correlation ID.
const CorrelationIDKey = "correlation_id"

// SecurityHeaders adds security headers to all responses
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		}

		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		// Assessment responses carry patient-derived content.
		c.Header("Cache-Control", "no-store")

		c.Next()
	}
}

// CorrelationID adds a unique correlation ID to each request for audit trails
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set(CorrelationIDKey, correlationID)
		c.Header("X-Correlation-ID", correlationID)

		c.Next()
	}
}

// GetCorrelationID returns the correlation ID set by CorrelationID.
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(CorrelationIDKey)
}

// AbortWithError writes a domain.APIError and stops the handler chain.
func AbortWithError(c *gin.Context, status int, code, message, details string) {
	c.AbortWithStatusJSON(status, domain.NewAPIError(code, message, details, GetCorrelationID(c)))
}

// Recovery converts panics into a 500 APIError.
func Recovery(logger *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.WithFields(logrus.Fields{
			CorrelationIDKey: GetCorrelationID(c),
			"path":           c.FullPath(),
			"panic":          recovered,
		}).Error("Recovered from handler panic")
		AbortWithError(c, http.StatusInternalServerError, domain.ErrInternalServer, "internal server error", "")
	})
}

// RequestLogger logs one structured line per request. Bodies are never
// logged since they contain patient data.
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			CorrelationIDKey: GetCorrelationID(c),
			"method":         c.Request.Method,
			"path":           c.FullPath(),
			"status":         c.Writer.Status(),
			"latency":        time.Since(start),
			"client_ip":      c.ClientIP(),
			"response_size":  c.Writer.Size(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request completed")
		}
	}
}

// RateLimit applies a shared token bucket. A non-positive limit disables it.
func RateLimit(limit float64, burst int) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(limit), burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			AbortWithError(c, http.StatusTooManyRequests, domain.ErrRateLimit, "rate limit exceeded", "")
			return
		}
		c.Next()
	}
}

// BodyLimit caps request bodies at maxBytes.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			if c.Request.ContentLength > maxBytes {
				AbortWithError(c, http.StatusRequestEntityTooLarge, domain.ErrInvalidInput, "request body too large", "")
				return
			}
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// CORS allows the configured origins. "*" allows any origin.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			if allowAll {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Correlation-ID")
			c.Header("Access-Control-Expose-Headers", "X-Correlation-ID")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
