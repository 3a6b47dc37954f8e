package schema

import (
	"log/slog"
	"time"

	"oneiro-hq/morpheus/pkg/taxonomy"
)

// DefaultMaxRepairAttempts bounds the repair loop.
const DefaultMaxRepairAttempts = 3

// Pipeline validates candidates against registered schemas and runs the
// bounded repair loop on failures.
type Pipeline struct {
	registry          *Registry
	maxRepairAttempts int
	logger            *slog.Logger
}

// NewPipeline creates a validation pipeline backed by the given registry.
// maxRepairAttempts ≤ 0 means DefaultMaxRepairAttempts.
func NewPipeline(registry *Registry, maxRepairAttempts int) *Pipeline {
	if maxRepairAttempts <= 0 {
		maxRepairAttempts = DefaultMaxRepairAttempts
	}
	return &Pipeline{
		registry:          registry,
		maxRepairAttempts: maxRepairAttempts,
		logger:            slog.Default().With("component", "schema.pipeline"),
	}
}

// Validate runs all three phases against the candidate. Phases do not
// short-circuit: every phase contributes its errors so repair sees the full
// picture in one pass.
func (p *Pipeline) Validate(schemaName string, candidate map[string]any) (*Result, error) {
	s, err := p.registry.Get(schemaName)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	var all []ValidationError
	all = append(all, s.Structural(candidate)...)
	all = append(all, s.Format(candidate)...)
	all = append(all, s.Semantic(candidate)...)

	result := &Result{ProcessingTime: time.Since(start)}
	for _, e := range all {
		if e.Severity.AtLeast(taxonomy.SeverityHigh) {
			result.Errors = append(result.Errors, e)
		} else {
			result.Warnings = append(result.Warnings, e)
		}
	}
	result.Valid = len(result.Errors) == 0

	if !result.Valid {
		p.logger.Debug("validation failed",
			"schema", schemaName,
			"errors", len(result.Errors),
			"warnings", len(result.Warnings),
		)
	}

	return result, nil
}

// MaxRepairAttempts returns the configured repair bound.
func (p *Pipeline) MaxRepairAttempts() int {
	return p.maxRepairAttempts
}

// Schema returns a registered schema by name.
func (p *Pipeline) Schema(name string) (Schema, error) {
	return p.registry.Get(name)
}
