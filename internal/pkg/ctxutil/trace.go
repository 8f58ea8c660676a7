package ctxutil

import "context"

type traceDataKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
	RunID     string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(Default(ctx), traceDataKey{}, td)
}

// WithRunID records runID on the trace data already on ctx, so the request
// that triggered a run logs the same id. Without trace data a new one is attached.
func WithRunID(ctx context.Context, runID string) context.Context {
	if td := GetTraceData(ctx); td != nil {
		td.RunID = runID
		return ctx
	}
	return WithTraceData(ctx, &TraceData{RunID: runID})
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}
