// Package providerfactory builds provider adapters from configuration.
package providerfactory

import (
	"fmt"
	"log/slog"

	"oneiro-hq/morpheus/pkg/config"
	"oneiro-hq/morpheus/pkg/providers"
	"oneiro-hq/morpheus/pkg/providers/anthropic"
	"oneiro-hq/morpheus/pkg/providers/generic"
	"oneiro-hq/morpheus/pkg/providers/openai"
)

// NewProvider creates a provider adapter from its runtime configuration.
//
// Supported provider types:
//   - "openai": OpenAI Chat Completions API
//   - "anthropic": Anthropic Messages API
//   - "generic": OpenAI-compatible APIs (Ollama, LM Studio, vLLM, etc.)
//
// If Type is empty it is inferred from the provider name; unknown names
// get the generic adapter.
func NewProvider(cfg providers.Config) (providers.Provider, error) {
	providerType := cfg.Type
	if providerType == "" {
		providerType = inferProviderType(cfg.Name)
		cfg.Type = providerType
	}

	slog.Debug("creating provider",
		"name", cfg.Name,
		"type", providerType,
		"base_url", cfg.BaseURL,
	)

	var (
		provider providers.Provider
		err      error
	)
	switch providerType {
	case "openai":
		provider, err = openai.New(cfg)
	case "anthropic":
		provider, err = anthropic.New(cfg)
	case "generic":
		provider, err = generic.New(cfg)
	default:
		return nil, &providers.ConfigError{
			Provider: cfg.Name,
			Field:    "type",
			Message:  fmt.Sprintf("unsupported provider type: %q (supported: openai, anthropic, generic)", providerType),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create provider %q: %w", cfg.Name, err)
	}

	return provider, nil
}

// FromConfig converts a configuration-file provider entry into the runtime
// provider config and builds the adapter. Disabled entries return
// (nil, nil).
func FromConfig(name string, pc config.ProviderConfig) (providers.Provider, error) {
	if !pc.ProviderEnabled() {
		slog.Info("provider disabled, skipping", "name", name)
		return nil, nil
	}

	return NewProvider(providers.Config{
		Name:            name,
		Type:            pc.Type,
		BaseURL:         pc.BaseURL,
		APIKey:          pc.APIKey,
		Model:           pc.Model,
		Timeout:         pc.Timeout,
		Priority:        pc.Priority,
		RPM:             pc.RPM,
		MaxConcurrent:   pc.MaxConcurrent,
		MaxOutputTokens: pc.MaxOutputTokens,
		SLATargetMs:     pc.SLATargetMs,
	})
}

// BuildAll builds adapters for every enabled provider in the
// configuration map. One broken provider fails the whole build; a gateway
// silently missing a configured backend is worse than a loud startup
// error.
func BuildAll(configured map[string]config.ProviderConfig) ([]providers.Provider, error) {
	built := make([]providers.Provider, 0, len(configured))
	for name, pc := range configured {
		p, err := FromConfig(name, pc)
		if err != nil {
			for _, prev := range built {
				prev.Close()
			}
			return nil, err
		}
		if p != nil {
			built = append(built, p)
		}
	}
	return built, nil
}

// inferProviderType infers the provider type from the provider name.
func inferProviderType(name string) string {
	switch name {
	case "openai":
		return "openai"
	case "anthropic":
		return "anthropic"
	default:
		return "generic"
	}
}
