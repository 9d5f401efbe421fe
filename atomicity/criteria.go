// Package atomicity implements the Atomicity Check (spec §4.10): the
// gate that decides whether an AC is small enough to execute directly
// or must be decomposed into children first.
//
// Grounded on
// _examples/original_source/src/ouroboros/execution/decomposition.py
// and its test suite
// _examples/original_source/tests/unit/execution/test_atomicity.py.
package atomicity

import "github.com/forgewell/acengine/core"

// Criteria bounds what counts as atomic (spec §4.10). Validate does not
// fill in zero values; start from DefaultCriteria to get the default
// thresholds.
type Criteria struct {
	MaxComplexity         float64
	MaxToolCount          int
	MaxDurationSeconds     int
}

// DefaultCriteria matches the original implementation's defaults.
func DefaultCriteria() Criteria {
	return Criteria{MaxComplexity: 0.5, MaxToolCount: 3, MaxDurationSeconds: 300}
}

// Validate rejects a Criteria whose bounds can never be satisfied.
func (c Criteria) Validate() error {
	if c.MaxComplexity < 0 || c.MaxComplexity > 1 {
		return core.Newf("atomicity.Validate", core.KindValidation, "max complexity %v out of range [0,1]", c.MaxComplexity)
	}
	if c.MaxToolCount < 0 {
		return core.Newf("atomicity.Validate", core.KindValidation, "max tool count %d must be non-negative", c.MaxToolCount)
	}
	if c.MaxDurationSeconds < 0 {
		return core.Newf("atomicity.Validate", core.KindValidation, "max duration %d must be non-negative", c.MaxDurationSeconds)
	}
	return nil
}

// Method records how an atomicity determination was reached.
type Method string

const (
	MethodLLM       Method = "llm"
	MethodHeuristic Method = "heuristic"
)

// Result is the outcome of a Check call.
type Result struct {
	IsAtomic          bool
	ComplexityScore   float64
	ToolCount         int
	EstimatedDuration int
	Reasoning         string
	Method            Method
}

func (r Result) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"is_atomic":          r.IsAtomic,
		"complexity_score":   r.ComplexityScore,
		"tool_count":         r.ToolCount,
		"estimated_duration": r.EstimatedDuration,
		"reasoning":          r.Reasoning,
		"method":             string(r.Method),
	}
}
