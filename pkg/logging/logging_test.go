package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("request complete", "provider", "openai", "latency_ms", 120)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if record["msg"] != "request complete" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record["provider"] != "openai" {
		t.Errorf("provider = %v", record["provider"])
	}
}

func TestNew_LevelFiltersRecords(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Format: "text", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Debug("noise")
	logger.Info("more noise")
	logger.Warn("signal")

	out := buf.String()
	if strings.Contains(out, "noise") {
		t.Errorf("below-threshold records emitted: %s", out)
	}
	if !strings.Contains(out, "signal") {
		t.Errorf("warn record missing: %s", out)
	}
}

func TestNew_RejectsUnknownSettings(t *testing.T) {
	if _, err := New(Config{Level: "verbose"}); err == nil {
		t.Error("Expected error for unknown level")
	}
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("Expected error for unknown format")
	}
	if _, err := New(Config{Output: "syslog"}); err == nil {
		t.Error("Expected error for unknown output")
	}
}

func TestRedaction_SensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("provider configured", "api_key", "sk-proj-abcdef123456789", "name", "openai")

	out := buf.String()
	if strings.Contains(out, "abcdef123456789") {
		t.Errorf("api key leaked: %s", out)
	}
	if !strings.Contains(out, "openai") {
		t.Errorf("non-sensitive value mangled: %s", out)
	}
}

func TestRedactString(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		leaks string
	}{
		{"openai key", "auth failed for sk-proj-abc123def456ghi", "abc123def456ghi"},
		{"anthropic key", "using sk-ant-api03-xyzzy12345", "xyzzy12345"},
		{"bearer token", "header Bearer eyJhbGciOiJIUzI1NiJ9.payload", "eyJhbGci"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RedactString(tt.in)
			if strings.Contains(out, tt.leaks) {
				t.Errorf("RedactString(%q) = %q, secret survived", tt.in, out)
			}
		})
	}

	plain := "provider openai responded in 120ms"
	if RedactString(plain) != plain {
		t.Errorf("plain text altered: %q", RedactString(plain))
	}
}

func TestRedactAPIKey(t *testing.T) {
	if got := RedactAPIKey("sk-proj-abcdef"); got != "sk-p***" {
		t.Errorf("RedactAPIKey = %q", got)
	}
	if got := RedactAPIKey("abc"); got != "***" {
		t.Errorf("short key = %q", got)
	}
}

func TestSetup_InstallsDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	if _, err := Setup(Config{Format: "json", Writer: &buf}); err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}

	slog.Info("hello from default")
	if !strings.Contains(buf.String(), "hello from default") {
		t.Errorf("default logger not installed: %s", buf.String())
	}
}
