package routing

import "testing"

func TestController_RouteFallsBackToComplexityScore(t *testing.T) {
	c := NewController(DefaultCatalog(), nil)

	decision, err := c.Route("execute", "a brand new task never seen before", Context{TokenCount: 50, ACDepth: 0})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if decision.Reason != "complexity_fallback" {
		t.Errorf("expected complexity fallback on first sight, got %q", decision.Reason)
	}
	if decision.Tier != TierFrugal {
		t.Errorf("expected a trivial task to land on the frugal tier, got %v", decision.Tier)
	}
}

func TestController_EscalatesAfterRepeatedFailures(t *testing.T) {
	c := NewController(DefaultCatalog(), nil)
	ctx := Context{TokenCount: 50, ACDepth: 0}

	decision, err := c.Route("execute", "retry this flaky task", ctx)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	startTier := decision.Tier

	for i := 0; i < EscalationAfterFailures; i++ {
		c.RecordResult(decision.Fingerprint, "retry this flaky task", startTier, false)
	}

	decision, err = c.Route("execute", "retry this flaky task", ctx)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if decision.Reason != "escalation" && decision.Reason != "escalation_exhausted" {
		t.Errorf("expected escalation after repeated failures, got reason %q", decision.Reason)
	}
	if next, ok := NextTier(startTier); ok && decision.Tier != next {
		t.Errorf("expected escalation to the next tier %v, got %v", next, decision.Tier)
	}
}

func TestController_RecordResultDowngradesOnSustainedSuccess(t *testing.T) {
	c := NewController(DefaultCatalog(), nil)
	fp := ComputeFingerprint("execute", Context{TokenCount: 50, ACDepth: 0})

	var last DowngradeResult
	for i := 0; i < DowngradeThreshold; i++ {
		last = c.RecordResult(fp, "a repeatedly successful task", TierStandard, true)
	}
	if !last.ShouldDowngrade {
		t.Errorf("expected downgrade recommendation after %d consecutive successes", DowngradeThreshold)
	}
	if last.RecommendedTier != TierFrugal {
		t.Errorf("expected downgrade to recommend frugal, got %v", last.RecommendedTier)
	}
}

func TestCatalog_GetModelForTierRejectsUnknownTier(t *testing.T) {
	c := NewCatalog(nil)
	if _, err := c.GetModelForTier(TierFrugal); err == nil {
		t.Errorf("expected an error for a tier with no configured candidates")
	}
}

func TestCatalog_ValidateConfigurationCatchesCostFactorMismatch(t *testing.T) {
	c := NewCatalog([]TierConfig{
		{Tier: TierFrugal, CostFactor: 999, Candidates: []ModelCandidate{{Provider: "x", Model: "y"}}},
	})
	errs := c.ValidateConfiguration()
	if len(errs) == 0 {
		t.Errorf("expected a validation error for a cost factor that disagrees with CanonicalCostFactor")
	}
}
