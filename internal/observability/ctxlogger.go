package observability

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// LoggerWithTrace returns the global logger enriched with the current span's
// trace_id/span_id, so every log line inside a step correlates with its
// trace.
func LoggerWithTrace(ctx context.Context) *zerolog.Logger {
	l := log.Logger
	if ctx == nil {
		return &l
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return &l
	}
	builder := l.With().Str("trace_id", sc.TraceID().String())
	if sc.HasSpanID() {
		builder = builder.Str("span_id", sc.SpanID().String())
	}
	l = builder.Logger()
	return &l
}
