// Package logger configures the process-wide zerolog.Logger every component
// narrows with .With().Str("component", "...").Logger(). Level is driven by
// the LOG_LEVEL environment variable.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Init initializes the file logger, writing to distill.log in the current
// directory. Call once at orchestrator startup.
func Init() (zerolog.Logger, error) {
	return InitWithOptions("distill.log", false)
}

// InitWithOptions initializes the logger with the specified options. If
// logFile is empty, logs go to stdout. If pretty is true, a ConsoleWriter is
// used (only meaningful when logFile is empty). Log level is read from
// LOG_LEVEL (debug, info, warn, error, trace; default info).
func InitWithOptions(logFile string, pretty bool) (zerolog.Logger, error) {
	level := parseLogLevel(os.Getenv("LOG_LEVEL"))

	var output io.Writer
	var logPath string
	var log zerolog.Logger

	switch {
	case logFile != "":
		logPath = logFile
		//nolint:gosec // G304: caller-specified log file path is intentional
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("open log file %s: %w", logPath, err)
		}
		output = file
		log = zerolog.New(output).Level(level).With().Timestamp().Logger()
	case pretty:
		output = zerolog.ConsoleWriter{Out: os.Stdout}
		log = zerolog.New(output).Level(level).With().Timestamp().Logger()
	default:
		output = os.Stdout
		log = zerolog.New(output).Level(level).With().Timestamp().Logger()
	}

	switch {
	case logFile != "":
		log.Info().Str("path", logPath).Str("level", level.String()).Msg("logger initialized")
	case pretty:
		log.Info().Str("output", "stdout").Str("format", "pretty").Str("level", level.String()).Msg("logger initialized")
	default:
		log.Info().Str("output", "stdout").Str("level", level.String()).Msg("logger initialized")
	}

	return log, nil
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "trace":
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

// TruncateString truncates s to at most n runes, appending an ellipsis
// marker when truncation occurred. Used to keep debug-level payload logs
// bounded, mirroring the teacher's memory/store.go helper.
func TruncateString(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "...(truncated)"
}
