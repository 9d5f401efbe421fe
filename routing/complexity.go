package routing

import "github.com/forgewell/acengine/core"

// Complexity Estimator constants (spec §4.5, §9).
const (
	MaxTokenThreshold = 4000
	MaxToolThreshold  = 5
	MaxDepthThreshold = 5

	weightToken = 0.30
	weightTool  = 0.30
	weightDepth = 0.40
)

// Context is the Complexity Estimator's input (spec §4.5).
type Context struct {
	TokenCount      int
	ToolDependencies []string
	ACDepth         int
}

// FactorBreakdown is one factor's raw and weighted contribution.
type FactorBreakdown struct {
	Raw      float64
	Weighted float64
}

// Breakdown is the Complexity Estimator's full output detail (spec §4.5).
type Breakdown struct {
	Token FactorBreakdown
	Tool  FactorBreakdown
	Depth FactorBreakdown
}

// Score computes the pure complexity score, clipped to [0,1], with its
// breakdown. Negative inputs fail with a validation error (spec §4.5).
func Score(ctx Context) (float64, Breakdown, error) {
	if ctx.TokenCount < 0 {
		return 0, Breakdown{}, core.Newf("routing.Score", core.KindValidation, "token_count must be >= 0, got %d", ctx.TokenCount)
	}
	if ctx.ACDepth < 0 {
		return 0, Breakdown{}, core.Newf("routing.Score", core.KindValidation, "ac_depth must be >= 0, got %d", ctx.ACDepth)
	}

	tokenRaw := clip01(float64(ctx.TokenCount) / MaxTokenThreshold)
	toolRaw := clip01(float64(len(ctx.ToolDependencies)) / MaxToolThreshold)
	depthRaw := clip01(float64(ctx.ACDepth) / MaxDepthThreshold)

	breakdown := Breakdown{
		Token: FactorBreakdown{Raw: tokenRaw, Weighted: tokenRaw * weightToken},
		Tool:  FactorBreakdown{Raw: toolRaw, Weighted: toolRaw * weightTool},
		Depth: FactorBreakdown{Raw: depthRaw, Weighted: depthRaw * weightDepth},
	}

	score := clip01(breakdown.Token.Weighted + breakdown.Tool.Weighted + breakdown.Depth.Weighted)
	return score, breakdown, nil
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// TierForScore applies the routing thresholds (spec §4.6, §8 property 4).
func TierForScore(score float64) Tier {
	switch {
	case score < 0.4:
		return TierFrugal
	case score < 0.7:
		return TierStandard
	default:
		return TierFrontier
	}
}
