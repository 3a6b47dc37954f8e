package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"oneiro-hq/morpheus/pkg/cli"
	"oneiro-hq/morpheus/pkg/config"
)

var validateFlags struct {
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load and validate the configuration file without starting the gateway.

The command applies defaults and environment overrides exactly as "run"
would, then reports every validation error it finds rather than stopping
at the first one.

Examples:
  # Validate the default config
  morpheus validate

  # Validate a specific file
  morpheus validate --config /etc/morpheus/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

// validationResult is the JSON payload for --format json.
type validationResult struct {
	Valid     bool              `json:"valid"`
	Errors    map[string]string `json:"errors,omitempty"`
	Providers []string          `json:"providers,omitempty"`
}

func validateConfig(cmd *cobra.Command, args []string) error {
	asJSON := cli.OutputFormat(validateFlags.format) == cli.FormatJSON
	formatter := cli.NewFormatter(cli.OutputFormat(validateFlags.format))

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			if asJSON {
				result := validationResult{Valid: false, Errors: make(map[string]string)}
				for _, fe := range verr.Errors {
					result.Errors[fe.Field] = fe.Message
				}
				if ferr := formatter.FormatTo(os.Stdout, result); ferr != nil {
					return ferr
				}
				return fmt.Errorf("configuration validation failed")
			}
			fmt.Printf("✗ Configuration invalid (%d errors):\n", len(verr.Errors))
			for _, fe := range verr.Errors {
				fmt.Printf("  - %s: %s\n", fe.Field, fe.Message)
			}
			return fmt.Errorf("configuration validation failed")
		}
		return fmt.Errorf("failed to load config: %w", err)
	}

	if asJSON {
		result := validationResult{Valid: true}
		for name := range cfg.Providers {
			result.Providers = append(result.Providers, name)
		}
		sort.Strings(result.Providers)
		return formatter.FormatTo(os.Stdout, result)
	}

	fmt.Println("✓ Configuration valid")
	fmt.Printf("  Listen address: %s\n", cfg.Server.ListenAddress)
	fmt.Printf("  Default schema: %s\n", cfg.Gateway.DefaultSchema)

	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Printf("  Providers (%d):\n", len(names))
	for _, name := range names {
		pc := cfg.Providers[name]
		state := "enabled"
		if !pc.ProviderEnabled() {
			state = "disabled"
		}
		fmt.Printf("    - %s: type=%s model=%s priority=%d (%s)\n",
			name, pc.Type, pc.Model, pc.Priority, state)
	}
	return nil
}
