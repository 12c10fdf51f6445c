package logging

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type contextKey string

const (
	loggerKey  contextKey = "logger"
	traceIDKey contextKey = "trace_id"
)

// GenerateTraceID generates a new trace ID
func GenerateTraceID() string {
	return uuid.NewString()
}

// FromContext retrieves the logger from context
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*Logger); ok {
			return l
		}
	}
	return Default()
}

// NewContext creates a new context with the logger
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// WithTraceContext adds a trace ID to the context and returns a logger with it
func WithTraceContext(ctx context.Context) (context.Context, *Logger) {
	traceID := GenerateTraceID()
	l := FromContext(ctx).WithTraceID(traceID)
	newCtx := context.WithValue(ctx, traceIDKey, traceID)
	newCtx = context.WithValue(newCtx, loggerKey, l)
	return newCtx, l
}

// TradeContext creates a logger context for trade operations
func TradeContext(symbol, side string, quantity, price float64) *Logger {
	return Default().WithFields(map[string]interface{}{
		"symbol":   symbol,
		"side":     side,
		"quantity": quantity,
		"price":    price,
	}).WithComponent("trade")
}

// PositionContext creates a logger context for position operations
func PositionContext(symbol string, entryPrice, quantity float64, leverage int) *Logger {
	return Default().WithFields(map[string]interface{}{
		"symbol":      symbol,
		"entry_price": entryPrice,
		"quantity":    quantity,
		"leverage":    leverage,
	}).WithComponent("position")
}

// PatternContext creates a logger context for pattern ranking
func PatternContext(pattern, rank string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"pattern": pattern,
		"rank":    rank,
	}).WithComponent("pattern")
}

// GinMiddleware logs every request with a trace ID and puts the request
// logger on the request context
func GinMiddleware(base *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = GenerateTraceID()
		}

		l := base.WithTraceID(traceID).WithFields(map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"remote_addr": c.ClientIP(),
		}).WithComponent("http")

		c.Request = c.Request.WithContext(NewContext(c.Request.Context(), l))
		c.Header("X-Trace-ID", traceID)

		c.Next()

		l.WithDuration(time.Since(start)).WithField("status_code", c.Writer.Status()).Debug("Request completed")
	}
}
