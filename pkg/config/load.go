package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It expands ${ENV_VAR} references, applies default values, and validates
// the result. Environment variable field overrides are not applied; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnvRefs(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the naming
// convention MORPHEUS_SECTION_FIELD (e.g., MORPHEUS_SERVER_LISTEN_ADDRESS)
// and always take precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file (with ${ENV_VAR} expansion and defaults)
//  2. Apply environment variable overrides
//  3. Re-validate the final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// expandEnvRefs replaces ${VAR} references with environment values.
// Unset variables expand to the empty string, which validation will then
// catch for required fields.
func expandEnvRefs(s string) string {
	return os.Expand(s, func(name string) string {
		return os.Getenv(name)
	})
}

// applyEnvOverrides applies MORPHEUS_SECTION_FIELD overrides.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	setString(&cfg.Server.ListenAddress, "MORPHEUS_SERVER_LISTEN_ADDRESS")
	setDuration(&cfg.Server.ReadTimeout, "MORPHEUS_SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "MORPHEUS_SERVER_WRITE_TIMEOUT")
	setDuration(&cfg.Server.RequestTimeout, "MORPHEUS_SERVER_REQUEST_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "MORPHEUS_SERVER_SHUTDOWN_TIMEOUT")

	// Provider overrides for every configured provider.
	for name := range cfg.Providers {
		applyProviderEnvOverrides(cfg, name)
	}

	// Gateway overrides
	setString(&cfg.Gateway.DefaultSchema, "MORPHEUS_GATEWAY_DEFAULT_SCHEMA")
	setFloat(&cfg.Gateway.DefaultTemperature, "MORPHEUS_GATEWAY_DEFAULT_TEMPERATURE")
	setInt(&cfg.Gateway.DefaultMaxTokens, "MORPHEUS_GATEWAY_DEFAULT_MAX_TOKENS")

	// Breaker overrides
	setInt(&cfg.Breaker.FailureThreshold, "MORPHEUS_BREAKER_FAILURE_THRESHOLD")
	setFloat(&cfg.Breaker.FailureRateThreshold, "MORPHEUS_BREAKER_FAILURE_RATE_THRESHOLD")
	setDuration(&cfg.Breaker.Cooldown, "MORPHEUS_BREAKER_COOLDOWN")

	// Health overrides
	setDuration(&cfg.Health.ProbeInterval, "MORPHEUS_HEALTH_PROBE_INTERVAL")
	setFloat(&cfg.Health.SuccessRateFloor, "MORPHEUS_HEALTH_SUCCESS_RATE_FLOOR")

	// Alerting overrides
	setString(&cfg.Alerting.WebhookURL, "MORPHEUS_ALERTING_WEBHOOK_URL")
	setDuration(&cfg.Alerting.SuppressionWindow, "MORPHEUS_ALERTING_SUPPRESSION_WINDOW")

	// Snapshot overrides
	setString(&cfg.Snapshot.Path, "MORPHEUS_SNAPSHOT_PATH")
	setDuration(&cfg.Snapshot.Retention, "MORPHEUS_SNAPSHOT_RETENTION")

	// Logging overrides
	setString(&cfg.Logging.Level, "MORPHEUS_LOGGING_LEVEL")
	setString(&cfg.Logging.Format, "MORPHEUS_LOGGING_FORMAT")
	setString(&cfg.Logging.Output, "MORPHEUS_LOGGING_OUTPUT")
}

// applyProviderEnvOverrides applies MORPHEUS_PROVIDERS_<NAME>_<FIELD>
// overrides for one provider, where NAME is the uppercase provider name.
func applyProviderEnvOverrides(cfg *Config, providerName string) {
	provider := cfg.Providers[providerName]
	prefix := fmt.Sprintf("MORPHEUS_PROVIDERS_%s_", strings.ToUpper(providerName))

	setString(&provider.BaseURL, prefix+"BASE_URL")
	setString(&provider.APIKey, prefix+"API_KEY")
	setString(&provider.Model, prefix+"MODEL")
	setDuration(&provider.Timeout, prefix+"TIMEOUT")
	setInt(&provider.Priority, prefix+"PRIORITY")
	setInt(&provider.RPM, prefix+"RPM")
	setInt(&provider.MaxConcurrent, prefix+"MAX_CONCURRENT")

	if val := os.Getenv(prefix + "ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			provider.Enabled = &b
		}
	}

	cfg.Providers[providerName] = provider
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func setFloat(dst *float64, key string) {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
