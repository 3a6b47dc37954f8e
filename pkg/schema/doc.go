// Package schema validates extracted candidates against named artifact
// schemas and repairs candidates that fail validation.
//
// Validation runs three phases in order, each contributing errors without
// short-circuiting: structural integrity (required fields, types), format
// consistency (field-level bounds), and semantic coherence (cross-field
// invariants). A candidate is valid when no error of high or critical
// severity remains.
//
// Repair is bounded and non-regressive: it fills missing required fields
// with schema defaults, coerces obviously-wrong types, and trims or pads
// bounded strings, re-validating after each pass. It never invents content
// beyond minimal placeholders.
package schema
