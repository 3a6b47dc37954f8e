package schema

import (
	"time"

	"oneiro-hq/morpheus/pkg/taxonomy"
)

// Validation phase identifiers, used as the Kind of a ValidationError.
const (
	PhaseStructural = "structural_integrity"
	PhaseFormat     = "format_consistency"
	PhaseSemantic   = "semantic_coherence"
)

// SourceEmergencyFallback is the artifact source sentinel for locally
// synthesized content. Consumers rely on it to tell genuine provider output
// from degraded-mode output.
const SourceEmergencyFallback = "emergency_fallback"

// ValidationError describes a single rule violation found by the pipeline.
type ValidationError struct {
	// Kind is the phase that produced the error.
	Kind string `json:"kind"`

	// Field is the dotted path of the offending field.
	Field string `json:"field"`

	// Message describes the violation.
	Message string `json:"message"`

	// Severity ranks the violation. Only high and critical block validity.
	Severity taxonomy.Severity `json:"severity"`

	// RepairHint names the repair action that can fix the violation
	// (empty if the violation is not mechanically repairable).
	RepairHint string `json:"repair_hint,omitempty"`
}

// Repair hint identifiers.
const (
	HintFillDefault   = "fill_default"
	HintCoerceType    = "coerce_type"
	HintClampLength   = "clamp_length"
	HintDropField     = "drop_field"
	HintRebuildScenes = "rebuild_scenes"
	HintClampNumber   = "clamp_number"
)

// Result is the outcome of one validation pass.
type Result struct {
	// Valid is true when no error of high or critical severity remains.
	Valid bool `json:"valid"`

	// Errors are blocking violations (high or critical severity).
	Errors []ValidationError `json:"errors"`

	// Warnings are non-blocking violations.
	Warnings []ValidationError `json:"warnings"`

	// ProcessingTime is how long validation took.
	ProcessingTime time.Duration `json:"processing_time_ms"`
}

// HighSeverityCount returns the number of blocking errors.
func (r *Result) HighSeverityCount() int {
	return len(r.Errors)
}

// RepairOutcome reports what a repair pass did.
type RepairOutcome struct {
	// Repaired is the repaired candidate (nil when Success is false).
	Repaired map[string]any `json:"repaired,omitempty"`

	// Success is true when post-repair re-validation passed.
	Success bool `json:"success"`

	// FixedFields lists the dotted paths repair touched, in order.
	FixedFields []string `json:"fixed_fields"`

	// Attempts is the number of repair passes used.
	Attempts int `json:"attempts"`

	// Remaining holds the blocking errors left after the final pass.
	Remaining []ValidationError `json:"remaining,omitempty"`
}

// Artifact is the validation envelope returned to callers for every
// successful generation, whether it came from a provider or the emergency
// fallback.
type Artifact struct {
	// Content is the schema-conformant payload.
	Content map[string]any `json:"content"`

	// Schema names the validation target the content conforms to.
	Schema string `json:"schema"`

	// Source is the provider name, or SourceEmergencyFallback.
	Source string `json:"source"`

	// Confidence is the gateway's confidence in the content, in [0,1].
	Confidence float64 `json:"confidence"`

	// ProcessingTimeMs is the end-to-end generation time.
	ProcessingTimeMs int64 `json:"processing_time_ms"`

	// RepairApplied is true when the content passed validation only after
	// repair.
	RepairApplied bool `json:"repair_applied,omitempty"`

	// ExtractionNotes records salvage steps taken during extraction.
	ExtractionNotes []string `json:"extraction_notes,omitempty"`
}

// IsFallback reports whether the artifact came from the emergency fallback.
func (a *Artifact) IsFallback() bool {
	return a.Source == SourceEmergencyFallback
}
