// Package routing implements the Tiered Routing Controller: the Tier
// Catalog (C4), Complexity Estimator (C5), and Routing Controller (C6)
// from spec §4.4-§4.6. Grounded on
// _examples/original_source/src/ouroboros/routing/downgrade.py for the
// escalation/downgrade ladder and pattern-similarity semantics, and on
// the teacher's orchestration/catalog.go for the catalog/candidate-list
// shape (a capability catalog mapping a key to a set of candidates).
package routing

import (
	"math/rand"

	"github.com/forgewell/acengine/core"
)

// Tier is one of Frugal, Standard, Frontier, each with a canonical cost
// multiplier (spec §3, GLOSSARY).
type Tier string

const (
	TierFrugal   Tier = "frugal"
	TierStandard Tier = "standard"
	TierFrontier Tier = "frontier"
)

// CanonicalCostFactor is the tier's fixed cost multiplier; a catalog
// entry whose declared factor disagrees with this is a config error.
var CanonicalCostFactor = map[Tier]float64{
	TierFrugal:   1,
	TierStandard: 10,
	TierFrontier: 30,
}

// NextTier returns the next tier up the escalation ladder, and false if
// already at Frontier (the ladder is exhausted — stagnation, spec §4.6).
func NextTier(t Tier) (Tier, bool) {
	switch t {
	case TierFrugal:
		return TierStandard, true
	case TierStandard:
		return TierFrontier, true
	default:
		return TierFrontier, false
	}
}

// PrevTier returns the next tier down the downgrade ladder, and false
// if already at Frugal (Frugal stays Frugal, spec §4.6).
func PrevTier(t Tier) (Tier, bool) {
	switch t {
	case TierFrontier:
		return TierStandard, true
	case TierStandard:
		return TierFrugal, true
	default:
		return TierFrugal, false
	}
}

// ModelCandidate is one (provider, model) pair a tier may draw from.
type ModelCandidate struct {
	Provider string
	Model    string
}

// TierConfig is a Tier Catalog entry: tier → cost factor + candidate
// models + use-case labels (spec §3).
type TierConfig struct {
	Tier       Tier
	CostFactor float64
	Candidates []ModelCandidate
	UseCases   []string
}

// Catalog maps tier → TierConfig (C4).
type Catalog struct {
	entries map[Tier]TierConfig
	rng     *rand.Rand
}

// NewCatalog builds a Catalog from entries, keyed by their own Tier field.
func NewCatalog(entries []TierConfig) *Catalog {
	m := make(map[Tier]TierConfig, len(entries))
	for _, e := range entries {
		m[e.Tier] = e
	}
	return &Catalog{entries: m, rng: rand.New(rand.NewSource(1))}
}

// DefaultCatalog returns a minimal, internally consistent catalog
// suitable for tests and as a starting configuration; real deployments
// load their own via LoadCatalog.
func DefaultCatalog() *Catalog {
	return NewCatalog([]TierConfig{
		{Tier: TierFrugal, CostFactor: 1, UseCases: []string{"trivial edits", "lookups"},
			Candidates: []ModelCandidate{{Provider: "anthropic", Model: "claude-haiku"}}},
		{Tier: TierStandard, CostFactor: 10, UseCases: []string{"typical feature work"},
			Candidates: []ModelCandidate{{Provider: "anthropic", Model: "claude-sonnet"}}},
		{Tier: TierFrontier, CostFactor: 30, UseCases: []string{"hard reasoning", "architecture"},
			Candidates: []ModelCandidate{{Provider: "anthropic", Model: "claude-opus"}}},
	})
}

// GetTierConfig returns tier's catalog entry, failing with a config
// error if the tier is absent, has zero models, or its cost factor
// disagrees with the tier's canonical multiplier (spec §4.4).
func (c *Catalog) GetTierConfig(tier Tier) (TierConfig, error) {
	entry, ok := c.entries[tier]
	if !ok {
		return TierConfig{}, core.Newf("routing.GetTierConfig", core.KindConfig, "tier %q not present in catalog", tier)
	}
	if len(entry.Candidates) == 0 {
		return TierConfig{}, core.Newf("routing.GetTierConfig", core.KindConfig, "tier %q has no model candidates", tier)
	}
	if entry.CostFactor != CanonicalCostFactor[tier] {
		return TierConfig{}, core.Newf("routing.GetTierConfig", core.KindConfig, "tier %q cost factor %v disagrees with canonical %v", tier, entry.CostFactor, CanonicalCostFactor[tier])
	}
	return entry, nil
}

// GetModelForTier returns one (provider, model) candidate for tier,
// chosen uniformly at random when multiple exist (deterministic when
// the candidate list is a singleton, spec §3).
func (c *Catalog) GetModelForTier(tier Tier) (ModelCandidate, error) {
	entry, err := c.GetTierConfig(tier)
	if err != nil {
		return ModelCandidate{}, err
	}
	if len(entry.Candidates) == 1 {
		return entry.Candidates[0], nil
	}
	return entry.Candidates[c.rng.Intn(len(entry.Candidates))], nil
}

// ValidateConfiguration succeeds iff all three tiers are present,
// non-empty, and cost-consistent; otherwise it returns a collected list
// of errors (spec §4.4).
func (c *Catalog) ValidateConfiguration() []error {
	var errs []error
	for _, tier := range []Tier{TierFrugal, TierStandard, TierFrontier} {
		if _, err := c.GetTierConfig(tier); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
