package llm

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"browseragent/internal/observability"
)

var tracer = otel.Tracer("browseragent/llm")

var payloadLogging atomic.Bool

// ConfigureLogging enables or disables full prompt payload logging. Metadata
// (model, counts, durations) is always logged regardless.
func ConfigureLogging(logPayloads bool) {
	payloadLogging.Store(logPayloads)
}

// StartRequestSpan opens one span per provider round-trip with the request's
// basic shape attached.
func StartRequestSpan(ctx context.Context, op, model string, tools, msgs int) (context.Context, trace.Span) {
	return tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("llm.model", model),
		attribute.Int("llm.tool_count", tools),
		attribute.Int("llm.message_count", msgs),
	))
}

// LogRedactedPrompt debug-logs the outgoing conversation. Screenshot data
// URLs are elided and secret-shaped values scrubbed before anything reaches
// the log stream; full content only appears when payload logging is on.
func LogRedactedPrompt(ctx context.Context, msgs []Message) {
	log := observability.LoggerWithTrace(ctx)
	if !payloadLogging.Load() {
		log.Debug().Int("messages", len(msgs)).Msg("llm_request")
		return
	}
	type turn struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	turns := make([]turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, turn{Role: m.Role, Content: elideDataURLs(m.Content)})
	}
	if b, err := json.Marshal(turns); err == nil {
		log.Debug().RawJSON("prompt", observability.RedactJSON(b)).Msg("llm_request")
	}
}

// elideDataURLs replaces inline base64 image payloads with a short marker so
// screenshots never bloat or leak into logs.
func elideDataURLs(s string) string {
	const prefix = "data:image/"
	for {
		i := strings.Index(s, prefix)
		if i < 0 {
			return s
		}
		end := i + len(prefix)
		for end < len(s) && !strings.ContainsRune(" \n\"'", rune(s[end])) {
			end++
		}
		s = s[:i] + "[image elided]" + s[end:]
	}
}
