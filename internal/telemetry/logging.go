// Package telemetry wires structured logging, OpenTelemetry tracing and
// metrics, and the Prometheus scrape endpoint, adapted from the teacher's
// libs/go/core/logging and libs/go/core/otelinit packages but renamed onto
// this service's own instrument prefix and with the Prometheus handler
// actually wired rather than left stubbed.
package telemetry

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogging configures the global slog logger: JSON if
// THERMIDOR_JSON_LOG is 1/true/json, text otherwise. Level is read from
// THERMIDOR_LOG_LEVEL (debug/info/warn/error, default info).
func InitLogging(service string) *slog.Logger {
	mode := strings.ToLower(os.Getenv("THERMIDOR_JSON_LOG"))
	jsonMode := mode == "1" || mode == "true" || mode == "json"

	opts := &slog.HandlerOptions{AddSource: false, Level: levelFromEnv()}
	var handler slog.Handler
	if jsonMode {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)
	logger.Info("logging initialized", "json", jsonMode)
	return logger
}

func levelFromEnv() slog.Leveler {
	switch strings.ToLower(os.Getenv("THERMIDOR_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
