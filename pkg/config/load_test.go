package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
server:
  listen_address: "0.0.0.0:9090"
  request_timeout: 45s

providers:
  openai:
    type: "openai"
    base_url: "https://api.openai.com"
    api_key: "sk-test"
    model: "gpt-4o"
    priority: 1
    rpm: 300
  local:
    type: "generic"
    base_url: "http://localhost:11434"
    model: "llama3"
    priority: 5

logging:
  level: "debug"
  format: "text"
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.RequestTimeout != 45*time.Second {
		t.Errorf("RequestTimeout = %v, want 45s", cfg.Server.RequestTimeout)
	}
	if len(cfg.Providers) != 2 {
		t.Fatalf("providers = %d, want 2", len(cfg.Providers))
	}
	if cfg.Providers["openai"].RPM != 300 {
		t.Errorf("openai rpm = %d", cfg.Providers["openai"].RPM)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Server.ReadTimeout != DefaultReadTimeout {
		t.Errorf("ReadTimeout = %v, want default %v", cfg.Server.ReadTimeout, DefaultReadTimeout)
	}
	if cfg.Gateway.DefaultSchema != DefaultSchema {
		t.Errorf("DefaultSchema = %q", cfg.Gateway.DefaultSchema)
	}
	if cfg.Breaker.FailureThreshold != DefaultFailureThreshold {
		t.Errorf("FailureThreshold = %d", cfg.Breaker.FailureThreshold)
	}
	if cfg.Providers["local"].Timeout != DefaultProviderTimeout {
		t.Errorf("local timeout = %v", cfg.Providers["local"].Timeout)
	}
	if cfg.Providers["local"].Priority != 5 {
		t.Errorf("explicit priority overwritten: %d", cfg.Providers["local"].Priority)
	}
	if !cfg.Snapshot.SnapshotEnabled() {
		t.Error("snapshots should default to enabled")
	}
}

func TestLoadConfig_ExpandsEnvRefs(t *testing.T) {
	t.Setenv("TEST_MORPHEUS_KEY", "sk-from-env")

	yaml := `
providers:
  openai:
    type: "openai"
    base_url: "https://api.openai.com"
    api_key: "${TEST_MORPHEUS_KEY}"
    model: "gpt-4o"
`
	cfg, err := LoadConfig(writeConfig(t, yaml))
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Providers["openai"].APIKey != "sk-from-env" {
		t.Errorf("APIKey = %q, want expanded env value", cfg.Providers["openai"].APIKey)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.yaml"); err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "server: [not a map")); err == nil {
		t.Fatal("Expected parse error")
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	yaml := `
providers:
  broken:
    type: "nope"
    model: "m"
`
	_, err := LoadConfig(writeConfig(t, yaml))
	if err == nil {
		t.Fatal("Expected validation error")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %T, want ValidationError", err)
	}
	fields := make(map[string]bool)
	for _, fe := range verr.Errors {
		fields[fe.Field] = true
	}
	if !fields["providers.broken.type"] {
		t.Errorf("missing type error; got %v", verr.Errors)
	}
	if !fields["providers.broken.base_url"] {
		t.Errorf("missing base_url error; got %v", verr.Errors)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	t.Setenv("MORPHEUS_SERVER_LISTEN_ADDRESS", "127.0.0.1:7777")
	t.Setenv("MORPHEUS_PROVIDERS_OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("MORPHEUS_PROVIDERS_OPENAI_RPM", "120")
	t.Setenv("MORPHEUS_LOGGING_LEVEL", "warn")

	cfg, err := LoadConfigWithEnvOverrides(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides returned error: %v", err)
	}

	if cfg.Server.ListenAddress != "127.0.0.1:7777" {
		t.Errorf("ListenAddress = %q, env should win", cfg.Server.ListenAddress)
	}
	if cfg.Providers["openai"].Model != "gpt-4o-mini" {
		t.Errorf("Model = %q", cfg.Providers["openai"].Model)
	}
	if cfg.Providers["openai"].RPM != 120 {
		t.Errorf("RPM = %d", cfg.Providers["openai"].RPM)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
}

func TestLoadConfigWithEnvOverrides_DisableProvider(t *testing.T) {
	t.Setenv("MORPHEUS_PROVIDERS_LOCAL_ENABLED", "false")

	cfg, err := LoadConfigWithEnvOverrides(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides returned error: %v", err)
	}
	if cfg.Providers["local"].ProviderEnabled() {
		t.Error("local provider should be disabled by env override")
	}
	if !cfg.Providers["openai"].ProviderEnabled() {
		t.Error("openai provider should remain enabled")
	}
}
