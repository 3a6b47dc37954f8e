package config

import "time"

// Config is the root configuration structure for Morpheus. It contains all
// configuration sections for the HTTP server, providers, the generation
// gateway, validation, resilience guards, observability, and persistence.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and CORS.
	Server ServerConfig `yaml:"server"`

	// Providers contains configuration for all generation backends.
	// Keys are provider names (e.g., "openai", "anthropic").
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Gateway contains request defaults and provider selection tuning.
	Gateway GatewayConfig `yaml:"gateway"`

	// Validation contains the validation pipeline settings.
	Validation ValidationConfig `yaml:"validation"`

	// Breaker contains the per-provider circuit breaker tuning.
	Breaker BreakerConfig `yaml:"breaker"`

	// Health contains the health monitor settings.
	Health HealthConfig `yaml:"health"`

	// Metrics contains the metrics collector settings.
	Metrics MetricsConfig `yaml:"metrics"`

	// Alerting contains alert lifecycle and delivery channel settings.
	Alerting AlertingConfig `yaml:"alerting"`

	// Snapshot contains the SQLite snapshot persistence settings.
	Snapshot SnapshotConfig `yaml:"snapshot"`

	// Logging contains structured logging settings.
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port". Default: "127.0.0.1:8085"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response
	// writes. Generation requests can legitimately take a while.
	// Default: 120s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle limit. Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds one generation request end to end, across all
	// provider attempts. Default: 90s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxHeaderBytes bounds request header parsing. Default: 1MB
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted. Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins lists allowed origins. ["*"] allows all.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods lists allowed HTTP methods.
	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders lists allowed request headers.
	// Default: ["Authorization", "Content-Type", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the preflight cache age in seconds. Default: 3600
	MaxAge int `yaml:"max_age"`
}

// ProviderConfig contains configuration for a single generation backend.
type ProviderConfig struct {
	// Type selects the adapter: "openai", "anthropic", or "generic".
	Type string `yaml:"type"`

	// BaseURL is the provider's API endpoint base.
	// Example: "https://api.openai.com"
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates against the provider. Supports ${ENV_VAR}
	// expansion.
	APIKey string `yaml:"api_key"`

	// Model is the default model for this provider.
	Model string `yaml:"model"`

	// Timeout bounds one request to this provider. Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// Priority orders providers for selection; higher is preferred.
	// Default: 10
	Priority int `yaml:"priority"`

	// RPM is the requests-per-minute admission limit. Zero disables it.
	RPM int `yaml:"rpm"`

	// MaxConcurrent bounds in-flight requests. Zero disables it.
	MaxConcurrent int `yaml:"max_concurrent"`

	// MaxOutputTokens caps token budget growth during corrective retries.
	MaxOutputTokens int `yaml:"max_output_tokens"`

	// SLATargetMs is the latency target used by health evaluation.
	SLATargetMs int `yaml:"sla_target_ms"`

	// Enabled controls whether the provider is registered. Default: true
	// (set explicitly to false to park a configured provider).
	Enabled *bool `yaml:"enabled"`
}

// GatewayConfig contains request defaults and selection tuning.
type GatewayConfig struct {
	// DefaultSchema is the validation target when a request names none.
	// Default: "dreamResponse"
	DefaultSchema string `yaml:"default_schema"`

	// DefaultTemperature seeds generation requests. Default: 0.7
	DefaultTemperature float64 `yaml:"default_temperature"`

	// DefaultMaxTokens seeds generation requests. Default: 2048
	DefaultMaxTokens int `yaml:"default_max_tokens"`
}

// ValidationConfig contains validation pipeline settings.
type ValidationConfig struct {
	// MaxRepairAttempts bounds repair passes per candidate. Default: 3
	MaxRepairAttempts int `yaml:"max_repair_attempts"`
}

// BreakerConfig contains circuit breaker tuning.
type BreakerConfig struct {
	// FailureThreshold opens the circuit after this many consecutive
	// failures. Default: 5
	FailureThreshold int `yaml:"failure_threshold"`

	// FailureRateThreshold opens the circuit when the windowed failure
	// rate crosses it. Default: 0.5
	FailureRateThreshold float64 `yaml:"failure_rate_threshold"`

	// MinimumSamples gates the failure-rate rule. Default: 10
	MinimumSamples int `yaml:"minimum_samples"`

	// Cooldown is how long an open circuit waits before probing.
	// Default: 30s
	Cooldown time.Duration `yaml:"cooldown"`
}

// HealthConfig contains health monitor settings.
type HealthConfig struct {
	// ProbeInterval is the active probe cadence. Default: 60s
	ProbeInterval time.Duration `yaml:"probe_interval"`

	// ProbeTimeout bounds one probe. Default: 10s
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// SuccessRateFloor marks a provider degraded below it. Default: 0.9
	SuccessRateFloor float64 `yaml:"success_rate_floor"`
}

// MetricsConfig contains metrics collector settings.
type MetricsConfig struct {
	// Namespace and Subsystem prefix Prometheus metric names.
	// Defaults: "oneiro", "morpheus"
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`

	// Path is the scrape endpoint path. Default: "/metrics"
	Path string `yaml:"path"`

	// AggregationInterval is the cron cadence for rule evaluation,
	// pruning, and snapshots. Default: 1m
	AggregationInterval time.Duration `yaml:"aggregation_interval"`
}

// AlertingConfig contains alert lifecycle and delivery settings.
type AlertingConfig struct {
	// SuppressionWindow deduplicates repeat fires. Default: 5m
	SuppressionWindow time.Duration `yaml:"suppression_window"`

	// EscalationThreshold escalates an alert after this many fires within
	// an hour. Default: 5
	EscalationThreshold int `yaml:"escalation_threshold"`

	// ProviderHourlyCap bounds deliveries per provider per hour.
	// Default: 20
	ProviderHourlyCap int `yaml:"provider_hourly_cap"`

	// Channels selects delivery channels: "log", "console", "webhook",
	// "email". Default: ["log"]
	Channels []string `yaml:"channels"`

	// WebhookURL is the webhook channel target; required when "webhook"
	// is listed in Channels.
	WebhookURL string `yaml:"webhook_url"`

	// Email configures the email channel; required when "email" is listed
	// in Channels.
	Email EmailConfig `yaml:"email"`
}

// EmailConfig configures SMTP alert delivery.
type EmailConfig struct {
	// Host and Port locate the SMTP server.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// From and To are the envelope addresses.
	From string `yaml:"from"`
	To   []string `yaml:"to"`

	// Username and Password authenticate, when set.
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SnapshotConfig contains snapshot persistence settings.
type SnapshotConfig struct {
	// Enabled controls whether snapshots are written. Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the SQLite database file. Default: "data/snapshots.db"
	Path string `yaml:"path"`

	// Retention is how long snapshot rows are kept. Default: 720h
	Retention time.Duration `yaml:"retention"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is the minimum level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text". Default: "json"
	Format string `yaml:"format"`

	// Output is "stdout" or "stderr". Default: "stdout"
	Output string `yaml:"output"`
}

// ProviderEnabled reports whether a provider config is enabled, defaulting
// to true when unset.
func (p ProviderConfig) ProviderEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// SnapshotEnabled reports whether snapshots are enabled, defaulting to
// true when unset.
func (s SnapshotConfig) SnapshotEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}
