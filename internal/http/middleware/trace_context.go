package middleware

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/finpulse-backend/internal/pkg/ctxutil"
)

const (
	HeaderRequestID = "X-Request-Id"
	HeaderTraceID   = "X-Trace-Id"

	maxRequestIDLen = 128
)

// AttachTraceContext puts one ctxutil.TraceData on every request. Runs
// started by the request record their RunID on it, so the access log sees it.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		td := &ctxutil.TraceData{
			TraceID:   traceID(ctx, c.GetHeader(HeaderTraceID)),
			RequestID: requestID(c.GetHeader(HeaderRequestID)),
		}
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("http.request_id", td.RequestID))
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(ctx, td))
		c.Header(HeaderTraceID, td.TraceID)
		c.Header(HeaderRequestID, td.RequestID)
		c.Next()
	}
}

// traceID prefers the active span, then a well-formed incoming header, and
// otherwise mints an id in the same 32-hex shape.
func traceID(ctx context.Context, header string) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	header = strings.ToLower(strings.TrimSpace(header))
	if len(header) == 32 {
		if _, err := hex.DecodeString(header); err == nil {
			return header
		}
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func requestID(header string) string {
	header = strings.TrimSpace(header)
	if header == "" || len(header) > maxRequestIDLen {
		return uuid.NewString()
	}
	for _, r := range header {
		if r < 0x21 || r > 0x7e {
			return uuid.NewString()
		}
	}
	return header
}
