package logger_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"genkey/internal/logger"
)

// TestInit verifies that the logger initializes correctly with various log levels.
func TestInit(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logLevel string // level to log at
		wantLog  bool   // whether we expect the message to appear
	}{
		{"debug level logs debug", "debug", "debug", true},
		{"debug level logs info", "debug", "info", true},
		{"info level logs info", "info", "info", true},
		{"info level skips debug", "info", "debug", false},
		{"warn level logs warn", "warn", "warn", true},
		{"warn level skips info", "warn", "info", false},
		{"error level logs error", "error", "error", true},
		{"error level skips warn", "error", "warn", false},
		{"invalid level defaults to info", "invalid", "info", true},
		{"empty level defaults to info", "", "info", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger.Init(logger.Options{Level: tt.level})
			logger.SetOutput(&buf)

			switch tt.logLevel {
			case "debug":
				logger.Get().Debug().Msg("test message")
			case "info":
				logger.Get().Info().Msg("test message")
			case "warn":
				logger.Get().Warn().Msg("test message")
			case "error":
				logger.Get().Error().Msg("test message")
			}

			hasMessage := strings.Contains(buf.String(), "test message")
			if tt.wantLog && !hasMessage {
				t.Errorf("Expected log output to contain 'test message', got: %s", buf.String())
			}
			if !tt.wantLog && hasMessage {
				t.Errorf("Expected log output NOT to contain 'test message', got: %s", buf.String())
			}
		})
	}
}

func TestLoggerGet(t *testing.T) {
	logger.Init(logger.Options{Level: "info"})
	if logger.Get() == nil {
		t.Error("Expected Get() to return a non-nil logger")
	}
}

func TestSetOutput(t *testing.T) {
	logger.Init(logger.Options{Level: "info"})

	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.Get().Info().Msg("custom output test")

	if !strings.Contains(buf.String(), "custom output test") {
		t.Errorf("Expected log output to contain 'custom output test', got: %s", buf.String())
	}
}

// TestJSONFormat verifies that JSON format produces valid JSON output.
func TestJSONFormat(t *testing.T) {
	logger.Init(logger.Options{Level: "info", Format: "json", Output: "stdout"})

	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.Get().Info().Str("key", "value").Msg("json test")

	output := strings.TrimSpace(buf.String())
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("Expected valid JSON output, got error: %v, output: %s", err, output)
	}
	if result["message"] != "json test" {
		t.Errorf("Expected message 'json test', got: %v", result["message"])
	}
	if result["key"] != "value" {
		t.Errorf("Expected key 'value', got: %v", result["key"])
	}
}

func TestHTTPEvent(t *testing.T) {
	logger.Init(logger.Options{Level: "debug"})

	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.HTTPEvent("POST", "/pkcs12", 200, 150).Msg("")

	output := buf.String()
	for _, want := range []string{`"method":"POST"`, `"path":"/pkcs12"`, `"status":200`, `"duration_ms":150`, `"event_category":"http"`} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected log to contain %s, got: %s", want, output)
		}
	}
}

func TestHTTPError(t *testing.T) {
	logger.Init(logger.Options{Level: "debug"})

	var buf bytes.Buffer
	logger.SetOutput(&buf)

	err := fmt.Errorf("test error")
	logger.HTTPError("POST", "/pkcs12", 500, err).Msg("")

	output := buf.String()
	for _, want := range []string{`"method":"POST"`, `"path":"/pkcs12"`, `"status":500`, `"error":"test error"`} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected log to contain %s, got: %s", want, output)
		}
	}
}

func TestIssuanceEvent(t *testing.T) {
	logger.Init(logger.Options{Level: "info"})

	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.IssuanceEvent("5f0c").Str("serial_number", "42").Msg("certificate issued")

	output := buf.String()
	for _, want := range []string{`"event_category":"issuance"`, `"issuance_id":"5f0c"`, `"serial_number":"42"`, `"level":"info"`} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected log to contain %s, got: %s", want, output)
		}
	}
}

func TestPanicEvent(t *testing.T) {
	logger.Init(logger.Options{Level: "debug"})

	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.PanicEvent("panic message", "stack trace").Msg("")

	output := buf.String()
	if !strings.Contains(output, `"error":"panic message"`) {
		t.Errorf("Expected log to contain panic message, got: %s", output)
	}
	if !strings.Contains(output, `"stack":"stack trace"`) {
		t.Errorf("Expected log to contain stack trace, got: %s", output)
	}
}

func TestInit_FileOutput_WritesToFile(t *testing.T) {
	logFilePath := filepath.Join(t.TempDir(), "genkey.log")
	logger.Init(logger.Options{Level: "info", Format: "json", Output: "file", FilePath: logFilePath})
	logger.Get().Info().Msg("file output test")
	content, err := os.ReadFile(logFilePath)
	if err != nil {
		t.Fatalf("expected log file to exist: %v", err)
	}
	if !strings.Contains(string(content), "file output test") {
		t.Fatalf("expected log file to contain message")
	}
}

func TestInit_FileOutput_MissingPath_DoesNotPanic(t *testing.T) {
	logger.Init(logger.Options{Level: "info", Output: "file"})
	logger.Get().Info().Msg("fallback output test")
}

func TestInit_InvalidOutput_FallsBackToStdout(t *testing.T) {
	logger.Init(logger.Options{Level: "info", Format: "console", Output: "nope"})
	logger.Get().Info().Msg("invalid output fallback")
}

func TestInit_BothOutput_InvalidFilePath_DoesNotPanic(t *testing.T) {
	logger.Init(logger.Options{Level: "info", Format: "json", Output: "both", FilePath: t.TempDir()})
	logger.Get().Info().Msg("both output fallback")
}
