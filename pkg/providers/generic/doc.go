// Package generic implements a providers.Provider adapter for local or
// self-hosted inference servers that speak an OpenAI-compatible wire format
// but may not require authentication or support streaming.
package generic
