package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the application-wide logger type, aliased to zerolog.Logger.
// This allows other packages to depend only on genkey/internal/logger instead of importing zerolog directly.
type Logger = zerolog.Logger

// Options mirrors the logging section of the configuration.
type Options struct {
	Level    string
	Format   string // console or json
	Output   string // stdout, file or both
	FilePath string
}

const consoleTimeFormat = "2006-01-02 15:04:05"

// Init configures the global logger. Problems with the requested outputs
// are reported as warnings once the logger is usable.
func Init(opts Options) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	outputMode := strings.ToLower(strings.TrimSpace(opts.Output))
	if outputMode == "" {
		outputMode = "stdout"
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}
	logFilePath := strings.TrimSpace(opts.FilePath)

	stdoutEnabled := outputMode == "stdout" || outputMode == "both"
	fileEnabled := outputMode == "file" || outputMode == "both"

	writers := make([]io.Writer, 0, 2)
	deferredWarnings := make([]string, 0, 2)

	if stdoutEnabled {
		writers = append(writers, formatWriter(os.Stdout, format))
	}

	if fileEnabled {
		if logFilePath == "" {
			deferredWarnings = append(deferredWarnings, "LOG_OUTPUT requires a file but LOG_FILE_PATH is not set; disabling file logging")
		} else {
			file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				deferredWarnings = append(deferredWarnings, fmt.Sprintf("Failed to open log file '%s', disabling file logging: %v", logFilePath, err))
			} else {
				writers = append(writers, formatWriter(file, format))
			}
		}
	}

	if len(writers) == 0 {
		writers = append(writers, formatWriter(os.Stdout, "console"))
		deferredWarnings = append(deferredWarnings, "No valid log output configured, falling back to stdout console")
		stdoutEnabled = true
		fileEnabled = false
		logFilePath = ""
	}

	var output io.Writer
	if len(writers) == 1 {
		output = writers[0]
	} else {
		output = zerolog.MultiLevelWriter(writers...)
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	invalidLevel := err != nil || lvl == zerolog.NoLevel
	if invalidLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(output).Level(lvl)

	if invalidLevel {
		log.Warn().Str("log_level_in", opts.Level).Msg("Invalid log level, defaulting to 'info'")
	}
	for _, msg := range deferredWarnings {
		log.Warn().Msg(msg)
	}

	log.Info().
		Str("level", lvl.String()).
		Str("output_mode", outputMode).
		Str("format", format).
		Bool("stdout_enabled", stdoutEnabled).
		Bool("file_enabled", fileEnabled).
		Str("log_file_path", logFilePath).
		Msg("Logger initialized")
}

func formatWriter(out io.Writer, format string) io.Writer {
	if format == "json" {
		return out
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: consoleTimeFormat}
}

// Get returns a pointer to the configured logger instance
func Get() *zerolog.Logger {
	return &log.Logger
}

// SetOutput changes the destination for log output.
// This is useful for redirecting logs to a buffer during testing.
func SetOutput(w io.Writer) {
	log.Logger = log.Output(w)
}

// Event is an alias for zerolog.Event to allow building log entries without importing zerolog.
type Event = zerolog.Event

// HTTPEvent logs HTTP request events with standardized fields.
func HTTPEvent(method, path string, status int, durationMs float64) *zerolog.Event {
	return log.Info().
		Str("event_category", "http").
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Float64("duration_ms", durationMs)
}

// HTTPError logs HTTP error events.
func HTTPError(method, path string, status int, err error) *zerolog.Event {
	return log.Error().
		Str("event_category", "http").
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Err(err)
}

// IssuanceEvent logs a completed certificate issuance.
func IssuanceEvent(issuanceID string) *zerolog.Event {
	return log.Info().
		Str("event_category", "issuance").
		Str("issuance_id", issuanceID)
}

// PanicEvent logs panic recovery events.
func PanicEvent(err interface{}, stack string) *zerolog.Event {
	return log.Error().
		Str("event_category", "panic").
		Interface("error", err).
		Str("stack", stack)
}
