package schema

import (
	"fmt"

	"oneiro-hq/morpheus/pkg/taxonomy"
)

// Field bounds for the dreamResponse schema.
const (
	TitleMinLen       = 5
	TitleMaxLen       = 200
	DescriptionMinLen = 10
	DescriptionMaxLen = 2000
)

// DreamResponseName is the schema identifier for generated dream scenes.
const DreamResponseName = "dreamResponse"

// DreamResponseSchema validates generated dream scene content:
//
//	{
//	  id:          string (required)
//	  title:       string, 5–200 chars (required)
//	  description: string, 10–2000 chars (required)
//	  scenes:      array of ≥1 {id, description, objects[]} (required)
//	  cinematography: {duration, shots[]} (optional)
//	  metadata:    {source, model, processingTimeMs, quality,
//	                confidence, cacheHit, tokens?} (required)
//	}
type DreamResponseSchema struct{}

// NewDreamResponseSchema returns the dreamResponse schema.
func NewDreamResponseSchema() *DreamResponseSchema {
	return &DreamResponseSchema{}
}

// Name returns the schema identifier.
func (s *DreamResponseSchema) Name() string { return DreamResponseName }

// Structural checks required top-level and nested fields and their types.
func (s *DreamResponseSchema) Structural(candidate map[string]any) []ValidationError {
	var errs []ValidationError

	requireString := func(field string) {
		v, ok := candidate[field]
		if !ok || v == nil {
			errs = append(errs, ValidationError{
				Kind: PhaseStructural, Field: field,
				Message:  fmt.Sprintf("required field %q is missing", field),
				Severity: taxonomy.SeverityHigh,
				RepairHint: HintFillDefault,
			})
			return
		}
		if _, ok := asString(v); !ok {
			errs = append(errs, ValidationError{
				Kind: PhaseStructural, Field: field,
				Message:  fmt.Sprintf("field %q must be a string, got %T", field, v),
				Severity: taxonomy.SeverityHigh,
				RepairHint: HintCoerceType,
			})
		}
	}

	requireString("id")
	requireString("title")
	requireString("description")

	scenes, ok := candidate["scenes"]
	if !ok || scenes == nil {
		errs = append(errs, ValidationError{
			Kind: PhaseStructural, Field: "scenes",
			Message:  "required field \"scenes\" is missing",
			Severity: taxonomy.SeverityHigh,
			RepairHint: HintRebuildScenes,
		})
	} else if arr, ok := asArray(scenes); !ok {
		errs = append(errs, ValidationError{
			Kind: PhaseStructural, Field: "scenes",
			Message:  fmt.Sprintf("field \"scenes\" must be an array, got %T", scenes),
			Severity: taxonomy.SeverityHigh,
			RepairHint: HintCoerceType,
		})
	} else {
		errs = append(errs, s.structuralScenes(arr)...)
	}

	meta, ok := candidate["metadata"]
	if !ok || meta == nil {
		errs = append(errs, ValidationError{
			Kind: PhaseStructural, Field: "metadata",
			Message:  "required field \"metadata\" is missing",
			Severity: taxonomy.SeverityHigh,
			RepairHint: HintFillDefault,
		})
	} else if metaMap, ok := meta.(map[string]any); !ok {
		errs = append(errs, ValidationError{
			Kind: PhaseStructural, Field: "metadata",
			Message:  fmt.Sprintf("field \"metadata\" must be an object, got %T", meta),
			Severity: taxonomy.SeverityHigh,
			RepairHint: HintFillDefault,
		})
	} else {
		errs = append(errs, s.structuralMetadata(metaMap)...)
	}

	return errs
}

// structuralScenes checks per-scene required subfields.
func (s *DreamResponseSchema) structuralScenes(scenes []any) []ValidationError {
	var errs []ValidationError

	for i, raw := range scenes {
		scene, ok := raw.(map[string]any)
		if !ok {
			errs = append(errs, ValidationError{
				Kind: PhaseStructural, Field: fmt.Sprintf("scenes[%d]", i),
				Message:  fmt.Sprintf("scene must be an object, got %T", raw),
				Severity: taxonomy.SeverityHigh,
				RepairHint: HintRebuildScenes,
			})
			continue
		}

		for _, field := range []string{"id", "description"} {
			v, ok := scene[field]
			if !ok || v == nil {
				errs = append(errs, ValidationError{
					Kind: PhaseStructural, Field: fmt.Sprintf("scenes[%d].%s", i, field),
					Message:  fmt.Sprintf("scene field %q is missing", field),
					Severity: taxonomy.SeverityHigh,
					RepairHint: HintFillDefault,
				})
			} else if _, ok := asString(v); !ok {
				errs = append(errs, ValidationError{
					Kind: PhaseStructural, Field: fmt.Sprintf("scenes[%d].%s", i, field),
					Message:  fmt.Sprintf("scene field %q must be a string", field),
					Severity: taxonomy.SeverityHigh,
					RepairHint: HintCoerceType,
				})
			}
		}

		objects, ok := scene["objects"]
		if !ok || objects == nil {
			errs = append(errs, ValidationError{
				Kind: PhaseStructural, Field: fmt.Sprintf("scenes[%d].objects", i),
				Message:  "scene field \"objects\" is missing",
				Severity: taxonomy.SeverityHigh,
				RepairHint: HintFillDefault,
			})
		} else if _, ok := asArray(objects); !ok {
			errs = append(errs, ValidationError{
				Kind: PhaseStructural, Field: fmt.Sprintf("scenes[%d].objects", i),
				Message:  fmt.Sprintf("scene field \"objects\" must be an array, got %T", objects),
				Severity: taxonomy.SeverityHigh,
				RepairHint: HintCoerceType,
			})
		}
	}

	return errs
}

// structuralMetadata checks the required metadata subfields.
func (s *DreamResponseSchema) structuralMetadata(meta map[string]any) []ValidationError {
	var errs []ValidationError

	for _, field := range []string{"source", "model", "quality"} {
		v, ok := meta[field]
		if !ok || v == nil {
			errs = append(errs, ValidationError{
				Kind: PhaseStructural, Field: "metadata." + field,
				Message:  fmt.Sprintf("metadata field %q is missing", field),
				Severity: taxonomy.SeverityHigh,
				RepairHint: HintFillDefault,
			})
		} else if _, ok := asString(v); !ok {
			errs = append(errs, ValidationError{
				Kind: PhaseStructural, Field: "metadata." + field,
				Message:  fmt.Sprintf("metadata field %q must be a string", field),
				Severity: taxonomy.SeverityHigh,
				RepairHint: HintCoerceType,
			})
		}
	}

	for _, field := range []string{"processingTimeMs", "confidence"} {
		v, ok := meta[field]
		if !ok || v == nil {
			errs = append(errs, ValidationError{
				Kind: PhaseStructural, Field: "metadata." + field,
				Message:  fmt.Sprintf("metadata field %q is missing", field),
				Severity: taxonomy.SeverityHigh,
				RepairHint: HintFillDefault,
			})
		} else if _, ok := asNumber(v); !ok {
			errs = append(errs, ValidationError{
				Kind: PhaseStructural, Field: "metadata." + field,
				Message:  fmt.Sprintf("metadata field %q must be a number", field),
				Severity: taxonomy.SeverityHigh,
				RepairHint: HintCoerceType,
			})
		}
	}

	if v, ok := meta["cacheHit"]; !ok || v == nil {
		errs = append(errs, ValidationError{
			Kind: PhaseStructural, Field: "metadata.cacheHit",
			Message:  "metadata field \"cacheHit\" is missing",
			Severity: taxonomy.SeverityHigh,
			RepairHint: HintFillDefault,
		})
	} else if _, ok := v.(bool); !ok {
		errs = append(errs, ValidationError{
			Kind: PhaseStructural, Field: "metadata.cacheHit",
			Message:  fmt.Sprintf("metadata field \"cacheHit\" must be a boolean, got %T", v),
			Severity: taxonomy.SeverityHigh,
			RepairHint: HintCoerceType,
		})
	}

	return errs
}

// Format checks field-level bounds: title 5–200, description 10–2000,
// scenes non-empty, confidence in [0,1].
func (s *DreamResponseSchema) Format(candidate map[string]any) []ValidationError {
	var errs []ValidationError

	if title, ok := asString(candidate["title"]); ok {
		if n := len([]rune(title)); n < TitleMinLen || n > TitleMaxLen {
			errs = append(errs, ValidationError{
				Kind: PhaseFormat, Field: "title",
				Message: fmt.Sprintf("title length %d outside [%d, %d]",
					n, TitleMinLen, TitleMaxLen),
				Severity:   taxonomy.SeverityHigh,
				RepairHint: HintClampLength,
			})
		}
	}

	if desc, ok := asString(candidate["description"]); ok {
		if n := len([]rune(desc)); n < DescriptionMinLen || n > DescriptionMaxLen {
			errs = append(errs, ValidationError{
				Kind: PhaseFormat, Field: "description",
				Message: fmt.Sprintf("description length %d outside [%d, %d]",
					n, DescriptionMinLen, DescriptionMaxLen),
				Severity:   taxonomy.SeverityHigh,
				RepairHint: HintClampLength,
			})
		}
	}

	if scenes, ok := asArray(candidate["scenes"]); ok && len(scenes) == 0 {
		errs = append(errs, ValidationError{
			Kind: PhaseFormat, Field: "scenes",
			Message:    "scenes array must not be empty",
			Severity:   taxonomy.SeverityHigh,
			RepairHint: HintRebuildScenes,
		})
	}

	if meta, ok := candidate["metadata"].(map[string]any); ok {
		if conf, ok := asNumber(meta["confidence"]); ok && (conf < 0 || conf > 1) {
			errs = append(errs, ValidationError{
				Kind: PhaseFormat, Field: "metadata.confidence",
				Message:    fmt.Sprintf("confidence %v outside [0, 1]", conf),
				Severity:   taxonomy.SeverityHigh,
				RepairHint: HintClampNumber,
			})
		}
	}

	return errs
}

// Semantic checks cross-field invariants: cinematography duration must be
// positive exactly when scenes exist.
func (s *DreamResponseSchema) Semantic(candidate map[string]any) []ValidationError {
	var errs []ValidationError

	cine, ok := candidate["cinematography"].(map[string]any)
	if !ok {
		return nil
	}

	scenes, _ := asArray(candidate["scenes"])
	duration, hasDuration := asNumber(cine["duration"])

	if len(scenes) > 0 && (!hasDuration || duration <= 0) {
		errs = append(errs, ValidationError{
			Kind: PhaseSemantic, Field: "cinematography.duration",
			Message:    "cinematography duration must be positive when scenes exist",
			Severity:   taxonomy.SeverityHigh,
			RepairHint: HintClampNumber,
		})
	}
	if len(scenes) == 0 && hasDuration && duration > 0 {
		errs = append(errs, ValidationError{
			Kind: PhaseSemantic, Field: "cinematography.duration",
			Message:    "cinematography duration set but no scenes exist",
			Severity:   taxonomy.SeverityMedium,
		})
	}

	return errs
}

// defaults holds schema default values by field path.
var dreamDefaults = map[string]any{
	"id":                        "",
	"title":                     "Untitled Dream",
	"description":               "A generated dream scene.",
	"metadata":                  map[string]any{},
	"metadata.source":           "unknown",
	"metadata.model":            "unknown",
	"metadata.quality":          "standard",
	"metadata.processingTimeMs": float64(0),
	"metadata.confidence":       float64(0.5),
	"metadata.cacheHit":         false,
}

// Default returns the schema default for a field path.
func (s *DreamResponseSchema) Default(field string) (any, bool) {
	v, ok := dreamDefaults[field]
	return v, ok
}

// Skeleton returns a minimal valid dreamResponse candidate.
func (s *DreamResponseSchema) Skeleton(id string) map[string]any {
	return map[string]any{
		"id":          id,
		"title":       "Untitled Dream",
		"description": "A generated dream scene.",
		"scenes": []any{
			map[string]any{
				"id":          "scene-1",
				"description": "An empty dreamscape awaiting detail.",
				"objects":     []any{},
			},
		},
		"metadata": map[string]any{
			"source":           "unknown",
			"model":            "unknown",
			"quality":          "standard",
			"processingTimeMs": float64(0),
			"confidence":       float64(0.5),
			"cacheHit":         false,
		},
	}
}

// Describe returns the schema summary used in corrective prompts.
func (s *DreamResponseSchema) Describe() string {
	return `JSON object with required fields: "id" (string), ` +
		`"title" (string, 5-200 chars), "description" (string, 10-2000 chars), ` +
		`"scenes" (non-empty array of {"id": string, "description": string, ` +
		`"objects": array}), and "metadata" ({"source", "model", "quality": strings, ` +
		`"processingTimeMs": number, "confidence": number 0-1, "cacheHit": boolean}). ` +
		`Optional "cinematography" object must carry a positive "duration" when scenes exist.`
}
