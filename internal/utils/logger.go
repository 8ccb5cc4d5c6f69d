package utils

import (
	"context"
	"log"
	"strings"
)

type requestIDKey struct{}

// LogEvent prints standardized log line with module/action/request_id.
// Avoid logging sensitive payload; message should be summarized.
func LogEvent(requestID, module, action, message string) {
	req := strings.TrimSpace(requestID)
	log.Printf("[%s] action=%s request_id=%s msg=%s", strings.ToUpper(module), action, req, message)
}

// LogEventCtx is LogEvent with the request id taken from ctx.
func LogEventCtx(ctx context.Context, module, action, message string) {
	LogEvent(RequestIDFrom(ctx), module, action, message)
}

// WithRequestID stores the HTTP request id so core commands can log it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}
