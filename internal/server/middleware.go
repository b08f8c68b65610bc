package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/xorcism-go/internal/auth"
	"github.com/xorcism-go/internal/errors"
	"github.com/xorcism-go/internal/handler"
	"github.com/xorcism-go/internal/metrics"
	"github.com/xorcism-go/internal/trace"
)

const subjectKey = "subject"

// TraceMiddleware adds request tracing context to each request
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(trace.HeaderRequestID)
		if reqID == "" || len(reqID) > 64 {
			reqID = trace.GenerateRequestID()
		}
		tag := trace.ExtractRouteTag(c.Request.URL.Path)

		ctx := trace.WithRequestID(c.Request.Context(), reqID)
		ctx = trace.WithRouteTag(ctx, tag)
		c.Request = c.Request.WithContext(ctx)

		c.Header(trace.HeaderRequestID, reqID)
		c.Next()
	}
}

// LoggerMiddleware logs HTTP requests and records request metrics
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		metrics.ObserveRequest(c.Request.Method, c.FullPath(), status, duration)

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("duration", duration).
			Str("subject", c.GetString(subjectKey)).
			Msg(trace.LogPrefix(c.Request.Context(), "request"))
	}
}

// RecoveryMiddleware turns panics into 500 responses
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		log.Error().Interface("panic", recovered).Msg(trace.LogPrefix(c.Request.Context(), "recover"))
		handler.RespondError(c.Writer, errors.NewInternal("Internal server error"))
		c.Abort()
	})
}

// CORSMiddleware handles CORS headers
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Authorization, Range, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Range, X-Request-ID, "+handler.HeaderMungeOffset+", "+handler.HeaderMungePosition)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// AuthMiddleware validates bearer JWTs. The token may also be passed as
// the token query parameter for clients that can't set headers.
func AuthMiddleware(jwtAuth *auth.JWTAuth) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}

		claims, err := jwtAuth.ValidateToken(token)
		if err != nil {
			handler.RespondError(c.Writer, errors.NewUnauthorized(err.Error()))
			c.Abort()
			return
		}

		c.Set(subjectKey, claims.Subject)
		c.Next()
	}
}
