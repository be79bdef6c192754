package telemetry

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/xerrors"
)

// NewLogger writes OpenTelemetry log data model keys so that collectors need
// no remapping. text switches to the human readable handler.
func NewLogger(w io.Writer, level slog.Leveler, text bool) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{
		Level: level,
		// https://opentelemetry.io/docs/specs/otel/logs/data-model/
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.LevelKey:
				a.Key = "severitytext"
			case slog.MessageKey:
				a.Key = "body"
			}
			return a
		},
	}
	if text {
		return slog.New(slog.NewTextHandler(w, handlerOpts))
	}
	return slog.New(slog.NewJSONHandler(w, handlerOpts))
}

// LevelFromEnv parses GO_LOG, falling back to fallback when unset.
func LevelFromEnv(fallback slog.Level) (slog.Level, error) {
	level := fallback
	if v, ok := os.LookupEnv("GO_LOG"); ok {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			return fallback, xerrors.Errorf("failed to parse log level: %w", err)
		}
	}
	return level, nil
}
