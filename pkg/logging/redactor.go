package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Provider credentials are the secrets this process actually handles.
// Keys named like a secret are masked regardless of value; string values
// that look like bearer tokens or vendor API keys are masked regardless
// of key.
var (
	apiKeyPattern = regexp.MustCompile(`\bsk-(?:ant-)?[a-zA-Z0-9_-]{8,}`)
	bearerPattern = regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`)
)

var sensitiveKeys = []string{
	"api_key", "apikey",
	"authorization", "auth",
	"token", "secret",
	"password", "passwd",
}

// redactAttr is a slog ReplaceAttr hook applied to every record.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) {
		a.Value = slog.StringValue(mask(a.Value.String()))
		return a
	}
	if a.Value.Kind() == slog.KindString {
		a.Value = slog.StringValue(RedactString(a.Value.String()))
	}
	return a
}

// RedactString masks credential-shaped substrings in s.
func RedactString(s string) string {
	if s == "" {
		return s
	}
	s = apiKeyPattern.ReplaceAllString(s, "sk-***")
	s = bearerPattern.ReplaceAllString(s, "Bearer ***")
	return s
}

// RedactAPIKey keeps a short prefix so operators can tell keys apart.
func RedactAPIKey(key string) string {
	return mask(key)
}

func mask(v string) string {
	if len(v) <= 4 {
		return "***"
	}
	return v[:4] + "***"
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
