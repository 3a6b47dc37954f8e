// Package config provides configuration management for Morpheus.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides. It provides a type-safe
// configuration system with validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention MORPHEUS_SECTION_FIELD.
// For example:
//
//   - MORPHEUS_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - MORPHEUS_PROVIDERS_OPENAI_API_KEY overrides providers.openai.api_key
//   - MORPHEUS_LOGGING_LEVEL overrides logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides
// earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Singleton Pattern
//
// For application-wide configuration access, use the singleton pattern:
//
//	// At application startup
//	if err := config.Initialize("config.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Anywhere in the application
//	cfg := config.GetConfig()
//	fmt.Println(cfg.Server.ListenAddress)
//
// For testing, prefer dependency injection with explicit Config instances
// rather than the global singleton.
//
// # Hot Reload
//
// A Watcher can observe the configuration file and reload the singleton on
// change, with debouncing to absorb editor save storms:
//
//	w, err := config.NewWatcher("config.yaml", nil)
//	go w.Watch(ctx, func(cfg *config.Config) { ... })
//
// # Example Configuration
//
// Here is a minimal configuration file:
//
//	server:
//	  listen_address: "127.0.0.1:8085"
//
//	providers:
//	  openai:
//	    type: "openai"
//	    base_url: "https://api.openai.com"
//	    api_key: "${OPENAI_API_KEY}"
//	    model: "gpt-4o"
//	    priority: 1
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Thread Safety
//
// All configuration access is thread-safe. The singleton uses read-write
// locks to allow concurrent reads while protecting against concurrent
// writes during reload.
package config
