package config

import "time"

// Default values applied by ApplyDefaults.
const (
	DefaultListenAddress   = "127.0.0.1:8085"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 120 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRequestTimeout  = 90 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20

	DefaultProviderTimeout  = 60 * time.Second
	DefaultProviderPriority = 10

	DefaultSchema      = "dreamResponse"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2048

	DefaultMaxRepairAttempts = 3

	DefaultFailureThreshold     = 5
	DefaultFailureRateThreshold = 0.5
	DefaultMinimumSamples       = 10
	DefaultCooldown             = 30 * time.Second

	DefaultProbeInterval    = 60 * time.Second
	DefaultProbeTimeout     = 10 * time.Second
	DefaultSuccessRateFloor = 0.9

	DefaultMetricsNamespace    = "oneiro"
	DefaultMetricsSubsystem    = "morpheus"
	DefaultMetricsPath         = "/metrics"
	DefaultAggregationInterval = time.Minute

	DefaultSuppressionWindow   = 5 * time.Minute
	DefaultEscalationThreshold = 5
	DefaultProviderHourlyCap   = 20

	DefaultSnapshotPath      = "data/snapshots.db"
	DefaultSnapshotRetention = 30 * 24 * time.Hour

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultLogOutput = "stdout"
)

// ApplyDefaults fills zero-valued fields with defaults. Explicitly set
// values, including from YAML, are never overwritten.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyProviderDefaults(cfg.Providers)
	applyGatewayDefaults(&cfg.Gateway)
	applyValidationDefaults(&cfg.Validation)
	applyBreakerDefaults(&cfg.Breaker)
	applyHealthDefaults(&cfg.Health)
	applyMetricsDefaults(&cfg.Metrics)
	applyAlertingDefaults(&cfg.Alerting)
	applySnapshotDefaults(&cfg.Snapshot)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	if cfg.CORS.AllowedOrigins == nil {
		cfg.CORS.Enabled = true
		cfg.CORS.AllowedOrigins = []string{"*"}
	}
	if cfg.CORS.AllowedMethods == nil {
		cfg.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if cfg.CORS.AllowedHeaders == nil {
		cfg.CORS.AllowedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
	}
	if cfg.CORS.MaxAge == 0 {
		cfg.CORS.MaxAge = 3600
	}
}

func applyProviderDefaults(providers map[string]ProviderConfig) {
	for name, p := range providers {
		if p.Timeout == 0 {
			p.Timeout = DefaultProviderTimeout
		}
		if p.Priority == 0 {
			p.Priority = DefaultProviderPriority
		}
		providers[name] = p
	}
}

func applyGatewayDefaults(cfg *GatewayConfig) {
	if cfg.DefaultSchema == "" {
		cfg.DefaultSchema = DefaultSchema
	}
	if cfg.DefaultTemperature == 0 {
		cfg.DefaultTemperature = DefaultTemperature
	}
	if cfg.DefaultMaxTokens == 0 {
		cfg.DefaultMaxTokens = DefaultMaxTokens
	}
}

func applyValidationDefaults(cfg *ValidationConfig) {
	if cfg.MaxRepairAttempts == 0 {
		cfg.MaxRepairAttempts = DefaultMaxRepairAttempts
	}
}

func applyBreakerDefaults(cfg *BreakerConfig) {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.FailureRateThreshold == 0 {
		cfg.FailureRateThreshold = DefaultFailureRateThreshold
	}
	if cfg.MinimumSamples == 0 {
		cfg.MinimumSamples = DefaultMinimumSamples
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = DefaultCooldown
	}
}

func applyHealthDefaults(cfg *HealthConfig) {
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = DefaultProbeInterval
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.SuccessRateFloor == 0 {
		cfg.SuccessRateFloor = DefaultSuccessRateFloor
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Path == "" {
		cfg.Path = DefaultMetricsPath
	}
	if cfg.AggregationInterval == 0 {
		cfg.AggregationInterval = DefaultAggregationInterval
	}
}

func applyAlertingDefaults(cfg *AlertingConfig) {
	if cfg.SuppressionWindow == 0 {
		cfg.SuppressionWindow = DefaultSuppressionWindow
	}
	if cfg.EscalationThreshold == 0 {
		cfg.EscalationThreshold = DefaultEscalationThreshold
	}
	if cfg.ProviderHourlyCap == 0 {
		cfg.ProviderHourlyCap = DefaultProviderHourlyCap
	}
	if cfg.Channels == nil {
		cfg.Channels = []string{"log"}
	}
}

func applySnapshotDefaults(cfg *SnapshotConfig) {
	if cfg.Path == "" {
		cfg.Path = DefaultSnapshotPath
	}
	if cfg.Retention == 0 {
		cfg.Retention = DefaultSnapshotRetention
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = DefaultLogLevel
	}
	if cfg.Format == "" {
		cfg.Format = DefaultLogFormat
	}
	if cfg.Output == "" {
		cfg.Output = DefaultLogOutput
	}
}
