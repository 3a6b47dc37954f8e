// Package fallback synthesizes a schema-valid artifact locally when every
// provider has failed. The result is honest about its origin: source is
// "emergency_fallback" and confidence is fixed at the floor, so downstream
// consumers can degrade gracefully instead of failing the request.
package fallback

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"oneiro-hq/morpheus/pkg/schema"
	"oneiro-hq/morpheus/pkg/taxonomy"
)

// FallbackConfidence is the fixed confidence of synthesized artifacts.
const FallbackConfidence = 0.1

// maxKeywords bounds how many prompt keywords seed the synthesis.
const maxKeywords = 6

// Error is a synthesis failure. This is terminal for the request.
type Error struct {
	// RequestID is the request the synthesis was for.
	RequestID string

	// Message describes the failure.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("emergency fallback failed for request %s: %s", e.RequestID, e.Message)
}

// ErrorKind implements taxonomy.Kinder.
func (e *Error) ErrorKind() taxonomy.Kind {
	return taxonomy.KindFallbackFailed
}

// Synthesizer builds emergency artifacts from the original prompt.
type Synthesizer struct {
	pipeline *schema.Pipeline
	logger   *slog.Logger
}

// New creates a synthesizer that validates its output against the given
// pipeline before returning it.
func New(pipeline *schema.Pipeline) *Synthesizer {
	return &Synthesizer{
		pipeline: pipeline,
		logger:   slog.Default().With("component", "fallback"),
	}
}

// Synthesize builds a schema-valid artifact from the prompt. The candidate
// starts from the schema skeleton and is enriched with keywords pulled from
// the prompt; it is validated before being returned.
func (s *Synthesizer) Synthesize(requestID, schemaName, prompt string) (*schema.Artifact, error) {
	start := time.Now()

	sc, err := s.pipeline.Schema(schemaName)
	if err != nil {
		return nil, &Error{RequestID: requestID, Message: err.Error()}
	}

	id := "fallback-" + uuid.NewString()
	candidate := sc.Skeleton(id)
	keywords := extractKeywords(prompt)
	enrich(candidate, prompt, keywords)

	elapsed := time.Since(start)
	if meta, ok := candidate["metadata"].(map[string]any); ok {
		meta["source"] = schema.SourceEmergencyFallback
		meta["model"] = "emergency-fallback"
		meta["quality"] = "degraded"
		meta["processingTimeMs"] = float64(elapsed.Milliseconds())
		meta["confidence"] = FallbackConfidence
		meta["cacheHit"] = false
	}

	result, err := s.pipeline.Validate(schemaName, candidate)
	if err != nil {
		return nil, &Error{RequestID: requestID, Message: err.Error()}
	}
	if !result.Valid {
		// The skeleton is schema-valid by construction; enrichment broke it.
		return nil, &Error{
			RequestID: requestID,
			Message:   fmt.Sprintf("synthesized candidate failed validation with %d errors", len(result.Errors)),
		}
	}

	s.logger.Warn("serving emergency fallback",
		"request_id", requestID,
		"schema", schemaName,
		"keywords", len(keywords),
	)

	return &schema.Artifact{
		Content:          candidate,
		Schema:           schemaName,
		Source:           schema.SourceEmergencyFallback,
		Confidence:       FallbackConfidence,
		ProcessingTimeMs: elapsed.Milliseconds(),
	}, nil
}

// enrich folds prompt keywords into the skeleton candidate.
func enrich(candidate map[string]any, prompt string, keywords []string) {
	if len(keywords) > 0 {
		candidate["title"] = buildTitle(keywords)
	}

	excerpt := truncateRunes(strings.TrimSpace(prompt), 160)
	if utf8.RuneCountInString(excerpt) >= 10 {
		candidate["description"] = "A dream about " + excerpt
	}

	if scenes, ok := candidate["scenes"].([]any); ok && len(scenes) > 0 {
		if scene, ok := scenes[0].(map[string]any); ok {
			objects := make([]any, 0, len(keywords))
			for _, kw := range keywords {
				objects = append(objects, kw)
			}
			scene["objects"] = objects
			if len(keywords) > 0 {
				scene["description"] = "A scene featuring " + strings.Join(keywords, ", ") + "."
			}
		}
	}
}

// buildTitle assembles a bounded title from the leading keywords.
func buildTitle(keywords []string) string {
	n := len(keywords)
	if n > 3 {
		n = 3
	}
	return truncateRunes("Dream of "+strings.Join(keywords[:n], " and "), schema.TitleMaxLen)
}

// truncateRunes bounds a string to max runes. Schema length limits count
// runes, and cutting at a byte offset could split a multi-byte character.
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// stopwords are skipped during keyword extraction.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"in": true, "on": true, "at": true, "to": true, "is": true, "are": true,
	"was": true, "were": true, "with": true, "about": true, "my": true,
	"i": true, "it": true, "that": true, "this": true, "for": true,
	"dream": true, "dreams": true, "dreamed": true, "dreamt": true,
}

// extractKeywords pulls the distinct significant words from the prompt, in
// order of first appearance.
func extractKeywords(prompt string) []string {
	fields := strings.FieldsFunc(strings.ToLower(prompt), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})

	seen := map[string]bool{}
	var keywords []string
	for _, word := range fields {
		if len(word) < 3 || stopwords[word] || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}
