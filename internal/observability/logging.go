// Package observability carries the agent's ambient stack: zerolog setup,
// OTel tracing/metrics, trace-correlated loggers, payload redaction, and an
// instrumented HTTP client.
package observability

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the global zerolog logger. When logPath is set, log
// lines go to that file only (stdout stays clean for interactive use); on
// open failure the logger falls back to stdout. An empty level defaults from
// NODE_ENV: "production" runs at info, anything else at debug.
func InitLogger(logPath, level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var w io.Writer = os.Stdout
	if logPath != "" {
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			w = f
		} else {
			_, _ = fmt.Fprintf(os.Stderr, "failed to open log file %q: %v\n", logPath, err)
		}
	}
	log.Logger = log.Output(w).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(resolveLevel(level))

	// Capture stray standard-library log output too.
	stdlog.SetFlags(0)
	stdlog.SetOutput(log.Logger)
}

func resolveLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	if level == "" {
		if strings.EqualFold(strings.TrimSpace(os.Getenv("NODE_ENV")), "production") {
			return zerolog.InfoLevel
		}
		return zerolog.DebugLevel
	}
	if l, err := zerolog.ParseLevel(level); err == nil {
		return l
	}
	return zerolog.InfoLevel
}
