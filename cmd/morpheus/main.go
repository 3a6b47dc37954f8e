// Morpheus is an AI provider gateway that turns dream prompts into
// schema-validated structured content.
//
// It fronts heterogeneous LLM providers (OpenAI, Anthropic, and
// OpenAI-compatible local runtimes), extracts structured JSON from
// whatever each provider returns, validates and repairs it against a
// registered schema, and degrades to a synthesized fallback when every
// provider fails.
//
// Usage:
//
//	# Start the gateway with the default configuration
//	morpheus run
//
//	# Start with a custom configuration file
//	morpheus run --config /etc/morpheus/config.yaml
//
//	# Validate a configuration file without starting
//	morpheus validate
//
//	# Show version information
//	morpheus version
package main

func main() {
	Execute()
}
