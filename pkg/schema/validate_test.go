package schema

import (
	"strings"
	"testing"
)

// validCandidate returns a fully valid dreamResponse candidate.
func validCandidate() map[string]any {
	return map[string]any{
		"id":          "dream-1",
		"title":       "A Dragon Over Mountains",
		"description": "An ethereal dragon soars above jagged peaks at dusk.",
		"scenes": []any{
			map[string]any{
				"id":          "scene-1",
				"description": "The dragon banks through violet clouds.",
				"objects":     []any{"dragon", "mountains"},
			},
		},
		"metadata": map[string]any{
			"source":           "openai",
			"model":            "gpt-4",
			"quality":          "standard",
			"processingTimeMs": float64(1200),
			"confidence":       float64(0.9),
			"cacheHit":         false,
		},
	}
}

func newTestPipeline() *Pipeline {
	return NewPipeline(NewRegistry(), 3)
}

// ============================================================================
// Validation Tests
// ============================================================================

func TestValidate_ValidCandidate(t *testing.T) {
	p := newTestPipeline()

	result, err := p.Validate(DreamResponseName, validCandidate())
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !result.Valid {
		t.Fatalf("Expected valid, got errors: %+v", result.Errors)
	}
}

func TestValidate_UnknownSchema(t *testing.T) {
	p := newTestPipeline()

	if _, err := p.Validate("nope", validCandidate()); err == nil {
		t.Fatal("Expected error for unknown schema")
	}
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	p := newTestPipeline()

	candidate := validCandidate()
	delete(candidate, "title")
	delete(candidate, "scenes")

	result, err := p.Validate(DreamResponseName, candidate)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if result.Valid {
		t.Fatal("Expected invalid for missing fields")
	}

	fields := map[string]bool{}
	for _, e := range result.Errors {
		fields[e.Field] = true
		if e.Kind != PhaseStructural {
			t.Errorf("Missing-field error should be structural, got %s", e.Kind)
		}
	}
	if !fields["title"] || !fields["scenes"] {
		t.Errorf("Expected errors for title and scenes, got %v", fields)
	}
}

func TestValidate_TitleBoundaries(t *testing.T) {
	p := newTestPipeline()

	tests := []struct {
		length int
		valid  bool
	}{
		{4, false},
		{5, true},
		{200, true},
		{201, false},
	}

	for _, tt := range tests {
		candidate := validCandidate()
		candidate["title"] = strings.Repeat("x", tt.length)

		result, err := p.Validate(DreamResponseName, candidate)
		if err != nil {
			t.Fatalf("Validate returned error: %v", err)
		}
		if result.Valid != tt.valid {
			t.Errorf("Title length %d: valid = %v, want %v", tt.length, result.Valid, tt.valid)
		}
	}
}

func TestValidate_DescriptionBoundaries(t *testing.T) {
	p := newTestPipeline()

	tests := []struct {
		length int
		valid  bool
	}{
		{9, false},
		{10, true},
		{2000, true},
		{2001, false},
	}

	for _, tt := range tests {
		candidate := validCandidate()
		candidate["description"] = strings.Repeat("d", tt.length)

		result, err := p.Validate(DreamResponseName, candidate)
		if err != nil {
			t.Fatalf("Validate returned error: %v", err)
		}
		if result.Valid != tt.valid {
			t.Errorf("Description length %d: valid = %v, want %v", tt.length, result.Valid, tt.valid)
		}
	}
}

func TestValidate_EmptyScenes(t *testing.T) {
	p := newTestPipeline()

	candidate := validCandidate()
	candidate["scenes"] = []any{}

	result, err := p.Validate(DreamResponseName, candidate)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if result.Valid {
		t.Fatal("Empty scenes must be invalid")
	}

	found := false
	for _, e := range result.Errors {
		if e.Field == "scenes" && e.Kind == PhaseFormat {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected format_consistency error on scenes, got %+v", result.Errors)
	}
}

func TestValidate_MinimalSceneValid(t *testing.T) {
	p := newTestPipeline()

	candidate := validCandidate()
	candidate["scenes"] = []any{
		map[string]any{"id": "s1", "description": "minimal", "objects": []any{}},
	}

	result, err := p.Validate(DreamResponseName, candidate)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !result.Valid {
		t.Fatalf("Minimal scene should be valid, errors: %+v", result.Errors)
	}
}

func TestValidate_PhasesDoNotShortCircuit(t *testing.T) {
	p := newTestPipeline()

	// Structural error (missing id) plus format error (short title) must
	// both be reported in one pass.
	candidate := validCandidate()
	delete(candidate, "id")
	candidate["title"] = "abc"

	result, err := p.Validate(DreamResponseName, candidate)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	kinds := map[string]bool{}
	for _, e := range result.Errors {
		kinds[e.Kind] = true
	}
	if !kinds[PhaseStructural] || !kinds[PhaseFormat] {
		t.Errorf("Expected both structural and format errors, got %v", kinds)
	}
}

func TestValidate_SemanticCinematography(t *testing.T) {
	p := newTestPipeline()

	// Scenes exist but duration is zero: blocking semantic error.
	candidate := validCandidate()
	candidate["cinematography"] = map[string]any{"duration": float64(0)}

	result, err := p.Validate(DreamResponseName, candidate)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if result.Valid {
		t.Fatal("Zero duration with scenes must be invalid")
	}

	// Positive duration with scenes: valid.
	candidate["cinematography"] = map[string]any{"duration": float64(12)}
	result, err = p.Validate(DreamResponseName, candidate)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !result.Valid {
		t.Fatalf("Positive duration with scenes should be valid, errors: %+v", result.Errors)
	}
}

func TestValidate_ConfidenceOutOfRange(t *testing.T) {
	p := newTestPipeline()

	candidate := validCandidate()
	candidate["metadata"].(map[string]any)["confidence"] = float64(1.4)

	result, err := p.Validate(DreamResponseName, candidate)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if result.Valid {
		t.Fatal("Confidence above 1 must be invalid")
	}
}

func TestSkeleton_ValidatesCleanly(t *testing.T) {
	p := newTestPipeline()
	s, err := p.Schema(DreamResponseName)
	if err != nil {
		t.Fatalf("Schema lookup failed: %v", err)
	}

	result, err := p.Validate(DreamResponseName, s.Skeleton("fallback-1"))
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !result.Valid {
		t.Fatalf("Skeleton must validate cleanly, errors: %+v", result.Errors)
	}
}
