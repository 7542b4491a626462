// Package obs wires up the ambient logging, tracing, and metrics stack
// shared by every component of the task manager core.
package obs

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogging configures the global slog logger. JSON output when
// TASKMANAGER_JSON_LOG is set to 1/true/json, text output otherwise.
func InitLogging(service string) *slog.Logger {
	mode := strings.ToLower(os.Getenv("TASKMANAGER_JSON_LOG"))
	var handler slog.Handler
	opts := &slog.HandlerOptions{AddSource: false, Level: levelFromEnv()}
	if mode == "1" || mode == "true" || mode == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)
	logger.Info("logging initialized", "json", mode == "1" || mode == "true" || mode == "json")
	return logger
}

func levelFromEnv() slog.Leveler {
	switch strings.ToLower(os.Getenv("TASKMANAGER_LOG_LEVEL")) {
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
