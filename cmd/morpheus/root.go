package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "morpheus",
	Short: "Morpheus - AI provider gateway for structured dream content",
	Long: `Morpheus is an AI provider gateway that turns dream prompts into
schema-validated structured content.

It routes generation requests across multiple LLM providers, extracts
structured JSON from heterogeneous responses, validates and repairs the
content against registered schemas, and synthesizes a degraded fallback
when every provider fails. Circuit breakers, rate limits, health checks,
metrics, and alerting keep the fleet observable and the gateway serving.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
