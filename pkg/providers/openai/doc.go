// Package openai implements the providers.Provider adapter for the OpenAI
// Chat Completions API and compatible endpoints, including SSE streaming.
package openai
