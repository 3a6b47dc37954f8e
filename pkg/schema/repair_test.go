package schema

import (
	"strings"
	"testing"
)

// repairInput validates then repairs a candidate, returning the outcome.
func repairInput(t *testing.T, candidate map[string]any) *RepairOutcome {
	t.Helper()
	p := newTestPipeline()

	result, err := p.Validate(DreamResponseName, candidate)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if result.Valid {
		t.Fatal("Test input should be invalid before repair")
	}

	outcome, err := p.Repair(DreamResponseName, candidate, result.Errors)
	if err != nil {
		t.Fatalf("Repair returned error: %v", err)
	}
	return outcome
}

func TestRepair_ShortTitle(t *testing.T) {
	candidate := validCandidate()
	candidate["title"] = "Fog"

	outcome := repairInput(t, candidate)
	if !outcome.Success {
		t.Fatalf("Repair should succeed, remaining: %+v", outcome.Remaining)
	}

	title := outcome.Repaired["title"].(string)
	if len(title) < TitleMinLen {
		t.Errorf("Repaired title %q still below minimum", title)
	}
	if !strings.HasPrefix(title, "Fog") {
		t.Errorf("Repair should preserve content, got %q", title)
	}
}

func TestRepair_OverlongTitle(t *testing.T) {
	candidate := validCandidate()
	candidate["title"] = strings.Repeat("a", 300)

	outcome := repairInput(t, candidate)
	if !outcome.Success {
		t.Fatalf("Repair should succeed, remaining: %+v", outcome.Remaining)
	}
	if n := len(outcome.Repaired["title"].(string)); n != TitleMaxLen {
		t.Errorf("Repaired title length = %d, want %d", n, TitleMaxLen)
	}
}

func TestRepair_MissingFieldsFilledWithDefaults(t *testing.T) {
	candidate := validCandidate()
	delete(candidate, "title")
	delete(candidate, "description")

	outcome := repairInput(t, candidate)
	if !outcome.Success {
		t.Fatalf("Repair should succeed, remaining: %+v", outcome.Remaining)
	}
	if outcome.Repaired["title"] == nil || outcome.Repaired["description"] == nil {
		t.Error("Defaults should have been filled")
	}
}

func TestRepair_StringifiedNumber(t *testing.T) {
	candidate := validCandidate()
	candidate["metadata"].(map[string]any)["processingTimeMs"] = "1200"

	outcome := repairInput(t, candidate)
	if !outcome.Success {
		t.Fatalf("Repair should succeed, remaining: %+v", outcome.Remaining)
	}

	meta := outcome.Repaired["metadata"].(map[string]any)
	if n, ok := asNumber(meta["processingTimeMs"]); !ok || n != 1200 {
		t.Errorf("processingTimeMs = %v, want coerced 1200", meta["processingTimeMs"])
	}
}

func TestRepair_CommaJoinedObjects(t *testing.T) {
	candidate := validCandidate()
	candidate["scenes"].([]any)[0].(map[string]any)["objects"] = "dragon, mountains, clouds"

	outcome := repairInput(t, candidate)
	if !outcome.Success {
		t.Fatalf("Repair should succeed, remaining: %+v", outcome.Remaining)
	}

	scene := outcome.Repaired["scenes"].([]any)[0].(map[string]any)
	objects, ok := scene["objects"].([]any)
	if !ok {
		t.Fatalf("objects = %T, want array", scene["objects"])
	}
	if len(objects) != 3 || objects[0] != "dragon" {
		t.Errorf("objects = %v, want [dragon mountains clouds]", objects)
	}
}

func TestRepair_EmptyScenesRebuilt(t *testing.T) {
	candidate := validCandidate()
	candidate["scenes"] = []any{}

	outcome := repairInput(t, candidate)
	if !outcome.Success {
		t.Fatalf("Repair should succeed, remaining: %+v", outcome.Remaining)
	}

	scenes := outcome.Repaired["scenes"].([]any)
	if len(scenes) == 0 {
		t.Fatal("Rebuilt scenes must not be empty")
	}
}

func TestRepair_DoesNotMutateInput(t *testing.T) {
	candidate := validCandidate()
	candidate["title"] = "abc"

	repairInput(t, candidate)

	if candidate["title"] != "abc" {
		t.Error("Repair must not mutate the input candidate")
	}
}

func TestRepair_NonRegressive(t *testing.T) {
	p := newTestPipeline()

	candidate := validCandidate()
	candidate["title"] = "abc"
	delete(candidate, "description")

	result, err := p.Validate(DreamResponseName, candidate)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	before := len(result.Errors)

	outcome, err := p.Repair(DreamResponseName, candidate, result.Errors)
	if err != nil {
		t.Fatalf("Repair returned error: %v", err)
	}

	// Success means zero blocking errors remain; otherwise the remaining
	// set must not have grown.
	if outcome.Success {
		return
	}
	if len(outcome.Remaining) > before {
		t.Errorf("Repair regressed: %d errors before, %d after",
			before, len(outcome.Remaining))
	}
}

func TestRepair_ConvergesWithinBound(t *testing.T) {
	candidate := validCandidate()
	candidate["title"] = "ab"
	candidate["metadata"].(map[string]any)["confidence"] = float64(2.5)
	candidate["scenes"] = []any{}

	outcome := repairInput(t, candidate)
	if !outcome.Success {
		t.Fatalf("Repair should converge, remaining: %+v", outcome.Remaining)
	}
	if outcome.Attempts > DefaultMaxRepairAttempts {
		t.Errorf("Attempts = %d exceeds bound %d", outcome.Attempts, DefaultMaxRepairAttempts)
	}
}

func TestRepair_Idempotent(t *testing.T) {
	p := newTestPipeline()

	candidate := validCandidate()
	candidate["title"] = "Fog"

	result, _ := p.Validate(DreamResponseName, candidate)
	first, err := p.Repair(DreamResponseName, candidate, result.Errors)
	if err != nil || !first.Success {
		t.Fatalf("First repair failed: %v / %+v", err, first)
	}

	// Repairing an already-valid candidate is a no-op pass that succeeds.
	second, err := p.Repair(DreamResponseName, first.Repaired, nil)
	if err != nil {
		t.Fatalf("Second repair returned error: %v", err)
	}
	if !second.Success {
		t.Fatal("Repair of repaired candidate should succeed")
	}
	if second.Repaired["title"] != first.Repaired["title"] {
		t.Error("Second repair changed an already-valid field")
	}
}

func TestRepair_UnrepairableStopsCleanly(t *testing.T) {
	p := newTestPipeline()

	// A scene that is not an object carries a rebuild hint only when the
	// array itself is bad; a populated array with a junk entry cannot be
	// fully repaired without inventing content.
	candidate := validCandidate()
	candidate["scenes"] = []any{"not a scene object"}

	result, err := p.Validate(DreamResponseName, candidate)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	outcome, err := p.Repair(DreamResponseName, candidate, result.Errors)
	if err != nil {
		t.Fatalf("Repair returned error: %v", err)
	}
	if outcome.Attempts > DefaultMaxRepairAttempts {
		t.Errorf("Attempts = %d exceeds bound", outcome.Attempts)
	}
	if outcome.Success {
		// Rebuild may legitimately replace a junk-only scene list; if it
		// succeeded the result must validate.
		res, _ := p.Validate(DreamResponseName, outcome.Repaired)
		if !res.Valid {
			t.Error("Successful repair must validate")
		}
	}
}
