package trace

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	routeTagKey  contextKey = "route_tag"
)

// HeaderRequestID carries the request ID in and out of the server
const HeaderRequestID = "X-Request-ID"

// GenerateRequestID generates a unique request ID in format "req-XXXXXXXX"
func GenerateRequestID() string {
	return "req-" + uuid.NewString()[:8]
}

// ExtractRouteTag derives a short tag like "munge:ops" from a URL path
// For /api/munge/ops -> "munge:ops"
// For /api/sessions/1234/ -> "sessions:1234"
// For /health -> "health"
func ExtractRouteTag(urlPath string) string {
	path := strings.TrimPrefix(urlPath, "/api")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "/"
	}
	if len(parts) > 1 && parts[1] != "" {
		return parts[0] + ":" + parts[1]
	}
	return parts[0]
}

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, reqID string) context.Context {
	return context.WithValue(ctx, requestIDKey, reqID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithRouteTag adds route tag to context
func WithRouteTag(ctx context.Context, tag string) context.Context {
	return context.WithValue(ctx, routeTagKey, tag)
}

// GetRouteTag retrieves route tag from context
func GetRouteTag(ctx context.Context) string {
	if v, ok := ctx.Value(routeTagKey).(string); ok {
		return v
	}
	return ""
}

// LogPrefix returns a formatted log prefix: "[req-xxx] [tag] [op]"
func LogPrefix(ctx context.Context, operation string) string {
	reqID := GetRequestID(ctx)
	tag := GetRouteTag(ctx)
	if reqID == "" {
		reqID = "req-????????"
	}
	if tag == "" {
		tag = "/"
	}
	return "[" + reqID + "] [" + tag + "] [" + operation + "]"
}
