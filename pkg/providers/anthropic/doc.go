// Package anthropic implements the providers.Provider adapter for the
// Anthropic Messages API, including SSE streaming.
package anthropic
