package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Repair attempts to fix a failed candidate so that re-validation passes.
//
// The loop is bounded by maxRepairAttempts. Each pass applies the repair
// hints attached to the current blocking errors, then re-validates. Repair
// is non-regressive: a pass that does not strictly reduce the blocking error
// count stops the loop. The input candidate is never mutated.
func (p *Pipeline) Repair(schemaName string, candidate map[string]any, errs []ValidationError) (*RepairOutcome, error) {
	s, err := p.registry.Get(schemaName)
	if err != nil {
		return nil, err
	}

	working := deepCopy(candidate)
	outcome := &RepairOutcome{}
	previousErrors := len(errs)
	current := errs

	for attempt := 1; attempt <= p.maxRepairAttempts; attempt++ {
		outcome.Attempts = attempt

		for _, e := range current {
			if fixed, field := p.applyFix(s, working, e); fixed {
				outcome.FixedFields = append(outcome.FixedFields, field)
			}
		}

		result, err := p.Validate(schemaName, working)
		if err != nil {
			return nil, err
		}

		if result.Valid {
			outcome.Success = true
			outcome.Repaired = working
			p.logger.Debug("repair succeeded",
				"schema", schemaName,
				"attempts", attempt,
				"fixed_fields", len(outcome.FixedFields),
			)
			return outcome, nil
		}

		// Non-regressive bound: stop when a pass fails to shrink the error set.
		if len(result.Errors) >= previousErrors {
			outcome.Remaining = result.Errors
			return outcome, nil
		}

		previousErrors = len(result.Errors)
		current = result.Errors
	}

	if result, err := p.Validate(schemaName, working); err == nil {
		outcome.Remaining = result.Errors
	}
	return outcome, nil
}

// applyFix applies one repair hint. Returns whether a change was made and
// the field path touched.
func (p *Pipeline) applyFix(s Schema, working map[string]any, e ValidationError) (bool, string) {
	switch e.RepairHint {
	case HintFillDefault:
		return p.fillDefault(s, working, e.Field), e.Field

	case HintCoerceType:
		return p.coerceType(working, e.Field), e.Field

	case HintClampLength:
		return p.clampLength(working, e.Field), e.Field

	case HintRebuildScenes:
		return p.rebuildScenes(s, working), "scenes"

	case HintClampNumber:
		return p.clampNumber(working, e.Field), e.Field

	default:
		return false, e.Field
	}
}

// fillDefault writes the schema default (or a scene placeholder) at the path.
func (p *Pipeline) fillDefault(s Schema, working map[string]any, field string) bool {
	if def, ok := s.Default(field); ok {
		return setPath(working, field, deepCopyValue(def))
	}

	// Scene subfields have positional placeholders rather than registry
	// defaults.
	if strings.HasPrefix(field, "scenes[") {
		switch {
		case strings.HasSuffix(field, ".id"):
			return setPath(working, field, "scene-"+sceneIndex(field))
		case strings.HasSuffix(field, ".description"):
			return setPath(working, field, "An unspecified moment in the dream.")
		case strings.HasSuffix(field, ".objects"):
			return setPath(working, field, []any{})
		}
	}

	// Generic default resolution by terminal segment (metadata.* fields).
	if def, ok := s.Default(normalizePath(field)); ok {
		return setPath(working, field, deepCopyValue(def))
	}
	return false
}

// coerceType converts obviously-wrong types toward the schema type inferred
// from the field path: stringified numbers become numbers, scalars become
// one-element arrays, comma-joined strings become arrays, and everything
// destined for a string field is stringified.
func (p *Pipeline) coerceType(working map[string]any, field string) bool {
	value, ok := getPath(working, field)
	if !ok {
		return false
	}

	switch fieldType(field) {
	case "string":
		if _, isStr := value.(string); !isStr {
			return setPath(working, field, fmt.Sprintf("%v", value))
		}

	case "number":
		if str, isStr := value.(string); isStr {
			if f, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
				return setPath(working, field, f)
			}
		}

	case "bool":
		if str, isStr := value.(string); isStr {
			if b, err := strconv.ParseBool(strings.TrimSpace(str)); err == nil {
				return setPath(working, field, b)
			}
		}

	case "array":
		switch v := value.(type) {
		case string:
			parts := strings.Split(v, ",")
			arr := make([]any, 0, len(parts))
			for _, part := range parts {
				if trimmed := strings.TrimSpace(part); trimmed != "" {
					arr = append(arr, trimmed)
				}
			}
			return setPath(working, field, arr)
		case map[string]any:
			return setPath(working, field, []any{v})
		}
	}

	return false
}

// clampLength trims or pads a bounded string to the nearest valid length.
func (p *Pipeline) clampLength(working map[string]any, field string) bool {
	value, ok := getPath(working, field)
	if !ok {
		return false
	}
	str, ok := value.(string)
	if !ok {
		return false
	}

	var clamped string
	switch normalizePath(field) {
	case "title":
		clamped = clampString(str, TitleMinLen, TitleMaxLen, ".")
	case "description":
		clamped = clampString(str, DescriptionMinLen, DescriptionMaxLen, ".")
	default:
		return false
	}

	if clamped == str {
		return false
	}
	return setPath(working, field, clamped)
}

// rebuildScenes replaces a missing, mistyped, or empty scenes array with the
// schema skeleton's minimal scene. Content is never invented beyond that
// placeholder.
func (p *Pipeline) rebuildScenes(s Schema, working map[string]any) bool {
	if arr, ok := asArray(working["scenes"]); ok && len(arr) > 0 {
		return false
	}
	skeleton := s.Skeleton("repair")
	working["scenes"] = deepCopyValue(skeleton["scenes"])
	return true
}

// clampNumber forces bounded numeric fields back into range.
func (p *Pipeline) clampNumber(working map[string]any, field string) bool {
	switch normalizePath(field) {
	case "metadata.confidence":
		value, ok := getPath(working, field)
		if !ok {
			return false
		}
		n, ok := asNumber(value)
		if !ok {
			return false
		}
		clamped := n
		if clamped < 0 {
			clamped = 0
		}
		if clamped > 1 {
			clamped = 1
		}
		if clamped == n {
			return false
		}
		return setPath(working, field, clamped)

	case "cinematography.duration":
		scenes, _ := asArray(working["scenes"])
		if len(scenes) == 0 {
			return false
		}
		// Minimal positive placeholder scaled to scene count.
		return setPath(working, field, float64(len(scenes)*5))
	}
	return false
}

// fieldType infers the schema type of a field from its path.
func fieldType(field string) string {
	switch normalizePath(field) {
	case "id", "title", "description",
		"metadata.source", "metadata.model", "metadata.quality":
		return "string"
	case "metadata.processingTimeMs", "metadata.confidence", "cinematography.duration":
		return "number"
	case "metadata.cacheHit":
		return "bool"
	case "scenes", "objects":
		return "array"
	}

	switch {
	case strings.HasSuffix(field, ".objects"):
		return "array"
	case strings.HasSuffix(field, ".id"), strings.HasSuffix(field, ".description"):
		return "string"
	}
	return ""
}

// normalizePath strips array indices: "scenes[2].id" becomes "scenes.id",
// and a bare indexed segment keeps its key.
func normalizePath(field string) string {
	var b strings.Builder
	skip := false
	for _, r := range field {
		switch r {
		case '[':
			skip = true
		case ']':
			skip = false
		default:
			if !skip {
				b.WriteRune(r)
			}
		}
	}
	out := b.String()
	if out == "scenes.id" || out == "scenes.description" || out == "scenes.objects" {
		return out[len("scenes."):]
	}
	return out
}

// sceneIndex extracts the index digits from a scenes[i] path for placeholder
// naming. Falls back to "1".
func sceneIndex(field string) string {
	open := strings.IndexByte(field, '[')
	end := strings.IndexByte(field, ']')
	if open < 0 || end <= open+1 {
		return "1"
	}
	return field[open+1 : end]
}
