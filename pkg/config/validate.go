package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// FieldError represents a validation error for a specific configuration
// field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration. It implements the error interface and provides access to
// all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// validProviderTypes are the adapters the provider factory can build.
var validProviderTypes = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"generic":   true,
}

// validAlertChannels are the deliverable channel names.
var validAlertChannels = map[string]bool{
	"log":     true,
	"console": true,
	"webhook": true,
	"email":   true,
}

// Validate validates the entire configuration and returns a
// ValidationError if any rules fail. All errors are collected and returned
// together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateProviders(cfg.Providers)...)
	errs = append(errs, validateGateway(&cfg.Gateway)...)
	errs = append(errs, validateBreaker(&cfg.Breaker)...)
	errs = append(errs, validateHealth(&cfg.Health)...)
	errs = append(errs, validateAlerting(&cfg.Alerting)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid host:port: %v", err),
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.RequestTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.request_timeout",
			Message: "request timeout must be positive",
		})
	}

	return errs
}

func validateProviders(providers map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	enabled := 0
	for name, p := range providers {
		prefix := "providers." + name

		if !validProviderTypes[p.Type] {
			errs = append(errs, FieldError{
				Field:   prefix + ".type",
				Message: fmt.Sprintf("unknown provider type %q (want openai, anthropic, or generic)", p.Type),
			})
		}

		if p.BaseURL == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".base_url",
				Message: "base URL is required",
			})
		} else if u, err := url.Parse(p.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".base_url",
				Message: fmt.Sprintf("invalid URL %q", p.BaseURL),
			})
		}

		// The generic adapter tolerates a missing key (local inference
		// servers often run unauthenticated); the vendor adapters do not.
		if p.APIKey == "" && p.Type != "generic" {
			errs = append(errs, FieldError{
				Field:   prefix + ".api_key",
				Message: "API key is required",
			})
		}

		if p.Model == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".model",
				Message: "model is required",
			})
		}

		if p.RPM < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".rpm",
				Message: "rpm must not be negative",
			})
		}
		if p.MaxConcurrent < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".max_concurrent",
				Message: "max_concurrent must not be negative",
			})
		}

		if p.ProviderEnabled() {
			enabled++
		}
	}

	if len(providers) > 0 && enabled == 0 {
		errs = append(errs, FieldError{
			Field:   "providers",
			Message: "at least one provider must be enabled",
		})
	}

	return errs
}

func validateGateway(cfg *GatewayConfig) []FieldError {
	var errs []FieldError

	if cfg.DefaultTemperature < 0 || cfg.DefaultTemperature > 2 {
		errs = append(errs, FieldError{
			Field:   "gateway.default_temperature",
			Message: "temperature must be in [0, 2]",
		})
	}
	if cfg.DefaultMaxTokens < 0 {
		errs = append(errs, FieldError{
			Field:   "gateway.default_max_tokens",
			Message: "max tokens must not be negative",
		})
	}

	return errs
}

func validateBreaker(cfg *BreakerConfig) []FieldError {
	var errs []FieldError

	if cfg.FailureThreshold < 1 {
		errs = append(errs, FieldError{
			Field:   "breaker.failure_threshold",
			Message: "failure threshold must be at least 1",
		})
	}
	if cfg.FailureRateThreshold <= 0 || cfg.FailureRateThreshold > 1 {
		errs = append(errs, FieldError{
			Field:   "breaker.failure_rate_threshold",
			Message: "failure rate threshold must be in (0, 1]",
		})
	}
	if cfg.Cooldown <= 0 {
		errs = append(errs, FieldError{
			Field:   "breaker.cooldown",
			Message: "cooldown must be positive",
		})
	}

	return errs
}

func validateHealth(cfg *HealthConfig) []FieldError {
	var errs []FieldError

	if cfg.ProbeInterval <= 0 {
		errs = append(errs, FieldError{
			Field:   "health.probe_interval",
			Message: "probe interval must be positive",
		})
	}
	if cfg.SuccessRateFloor <= 0 || cfg.SuccessRateFloor > 1 {
		errs = append(errs, FieldError{
			Field:   "health.success_rate_floor",
			Message: "success rate floor must be in (0, 1]",
		})
	}

	return errs
}

func validateAlerting(cfg *AlertingConfig) []FieldError {
	var errs []FieldError

	for _, ch := range cfg.Channels {
		if !validAlertChannels[ch] {
			errs = append(errs, FieldError{
				Field:   "alerting.channels",
				Message: fmt.Sprintf("unknown channel %q (want log, console, webhook, or email)", ch),
			})
			continue
		}
		switch ch {
		case "webhook":
			if cfg.WebhookURL == "" {
				errs = append(errs, FieldError{
					Field:   "alerting.webhook_url",
					Message: "webhook URL is required when the webhook channel is enabled",
				})
			}
		case "email":
			if cfg.Email.Host == "" || len(cfg.Email.To) == 0 {
				errs = append(errs, FieldError{
					Field:   "alerting.email",
					Message: "email host and recipients are required when the email channel is enabled",
				})
			}
		}
	}

	return errs
}

func validateLogging(cfg *LoggingConfig) []FieldError {
	var errs []FieldError

	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q (want debug, info, warn, or error)", cfg.Level),
		})
	}

	switch cfg.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown format %q (want json or text)", cfg.Format),
		})
	}

	switch cfg.Output {
	case "stdout", "stderr":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.output",
			Message: fmt.Sprintf("unknown output %q (want stdout or stderr)", cfg.Output),
		})
	}

	return errs
}
