package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestConfigError_Message(t *testing.T) {
	withField := NewConfigError("providers.openai.api_key", "missing")
	if !strings.Contains(withField.Error(), "providers.openai.api_key") {
		t.Errorf("Error() = %q", withField.Error())
	}

	noField := NewConfigError("", "file not found")
	if strings.Contains(noField.Error(), "in :") {
		t.Errorf("Error() = %q, field separator leaked", noField.Error())
	}
}

func TestCommandError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := NewCommandError("run", inner)

	if !errors.Is(err, inner) {
		t.Error("Unwrap should expose the inner error")
	}
	if !strings.Contains(err.Error(), "run") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestFormatter_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatText).FormatTo(&buf, "hello"); err != nil {
		t.Fatalf("FormatTo returned error: %v", err)
	}
	if buf.String() != "hello\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestFormatter_JSON(t *testing.T) {
	var buf bytes.Buffer
	data := map[string]any{"status": "ok", "count": 2}
	if err := NewFormatter(FormatJSON).FormatTo(&buf, data); err != nil {
		t.Fatalf("FormatTo returned error: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if out["status"] != "ok" {
		t.Errorf("status = %v", out["status"])
	}
}

func TestFormatter_UnknownFallsBackToText(t *testing.T) {
	if _, ok := NewFormatter("csv").(*TextFormatter); !ok {
		t.Error("unknown format should fall back to text")
	}
}

func TestSetupSignalHandler_ReturnsLiveContext(t *testing.T) {
	ctx := SetupSignalHandler()
	select {
	case <-ctx.Done():
		t.Error("context cancelled without a signal")
	default:
	}
}
