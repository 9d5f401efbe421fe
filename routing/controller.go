package routing

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/forgewell/acengine/core"
)

// Routing Controller constants (spec §4.6, §9).
const (
	EscalationAfterFailures = 2
	DowngradeThreshold      = 5
	SimilarityThreshold     = 0.80
	MaxHistoryPerHash       = 50
	MaxTotalHistory         = 10_000
)

// Decision is the outcome of a routing decision: the chosen tier plus
// the reason it was chosen, for observability (spec §4.6).
type Decision struct {
	Tier        Tier
	Reason      string
	Fingerprint Fingerprint
	Stagnation  bool
}

// historyRecord is one recorded task outcome at a fingerprint.
type historyRecord struct {
	tier    Tier
	success bool
	seq     uint64
}

// fingerprintHistory tracks per-fingerprint outcome history plus the
// downgrade success streak, bounded per spec §9 (MAX_HISTORY_PER_HASH).
type fingerprintHistory struct {
	records      []historyRecord
	description  string
	successRun   int
	lastTier     Tier
	lastSeq      uint64
}

// Controller is the Routing Controller (C6): history-guided tier
// selection with escalation on repeated failure, downgrade on sustained
// success, and cost-optimized initial tier choice via the Complexity
// Estimator (spec §4.6). Grounded on
// _examples/original_source/src/ouroboros/routing/downgrade.py
// (SuccessTracker / PatternMatcher / DowngradeManager) generalized to
// also cover escalation and the route() entrypoint spec.md adds on top.
type Controller struct {
	mu        sync.Mutex
	catalog   *Catalog
	history   map[Fingerprint]*fingerprintHistory
	seq       uint64
	logger    core.Logger
	telemetry core.Telemetry
}

// SetTelemetry attaches an optional Telemetry provider; Route wraps
// itself in a span and records a routing_decisions_total metric when
// one is set. nil leaves Route untraced.
func (c *Controller) SetTelemetry(t core.Telemetry) {
	c.telemetry = t
}

func NewController(catalog *Catalog, logger core.Logger) *Controller {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("engine/routing")
	}
	return &Controller{
		catalog: catalog,
		history: make(map[Fingerprint]*fingerprintHistory),
		logger:  logger,
	}
}

// Route chooses a tier for a task (spec §4.6). Order of precedence:
//  1. Trailing-failure-run escalation at the fingerprint's last tier,
//     if the last EscalationAfterFailures outcomes were all failures.
//     Escalating past Frontier is reported as Stagnation rather than
//     silently capping.
//  2. The fingerprint's last successful tier, if any.
//  3. A pattern-similarity match against a previously-seen description
//     (Jaccard >= SimilarityThreshold), inheriting its tier.
//  4. Complexity-based fallback via Score/TierForScore.
//
// taskTypeTag and description together derive the fingerprint and the
// similarity key; ctx supplies the Complexity Estimator's inputs.
func (c *Controller) Route(taskTypeTag, description string, ctx Context) (Decision, error) {
	decision, err := c.route(taskTypeTag, description, ctx)
	if c.telemetry != nil {
		_, span := c.telemetry.StartSpan(context.Background(), "routing.route")
		span.SetAttribute("task_type", taskTypeTag)
		if err == nil {
			span.SetAttribute("tier", string(decision.Tier))
			span.SetAttribute("reason", decision.Reason)
			c.telemetry.RecordMetric("routing_decisions_total", 1, map[string]string{"tier": string(decision.Tier), "reason": decision.Reason})
		} else {
			span.RecordError(err)
		}
		span.End()
	}
	return decision, err
}

func (c *Controller) route(taskTypeTag, description string, ctx Context) (Decision, error) {
	fp := ComputeFingerprint(taskTypeTag, ctx)

	c.mu.Lock()
	h, ok := c.history[fp]
	c.mu.Unlock()

	if ok {
		if tier, stagnate := c.checkEscalation(h); stagnate {
			return Decision{Tier: TierFrontier, Reason: "escalation_exhausted", Fingerprint: fp, Stagnation: true}, nil
		} else if tier != "" {
			return Decision{Tier: tier, Reason: "escalation", Fingerprint: fp}, nil
		}
		if last, ok := c.lastSuccessTier(h); ok {
			return Decision{Tier: last, Reason: "last_successful_tier", Fingerprint: fp}, nil
		}
	}

	if description != "" {
		if tier, matched, sim := c.matchSimilarPattern(description); matched {
			c.logger.Debug("routing.pattern_matched", map[string]interface{}{"similarity": sim, "tier": string(tier)})
			return Decision{Tier: tier, Reason: "pattern_similarity", Fingerprint: fp}, nil
		}
	}

	score, _, err := Score(ctx)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Tier: TierForScore(score), Reason: "complexity_fallback", Fingerprint: fp}, nil
}

// checkEscalation reports the next tier up the ladder if the last
// EscalationAfterFailures outcomes at the fingerprint were failures,
// and whether the ladder is exhausted (Frontier stagnation).
func (c *Controller) checkEscalation(h *fingerprintHistory) (tier Tier, stagnate bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(h.records)
	if n < EscalationAfterFailures {
		return "", false
	}
	for i := n - EscalationAfterFailures; i < n; i++ {
		if h.records[i].success {
			return "", false
		}
	}
	currentTier := h.records[n-1].tier
	next, ok := NextTier(currentTier)
	if !ok {
		return "", true
	}
	return next, false
}

func (c *Controller) lastSuccessTier(h *fingerprintHistory) (Tier, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(h.records) - 1; i >= 0; i-- {
		if h.records[i].success {
			return h.records[i].tier, true
		}
	}
	return "", false
}

// matchSimilarPattern finds the most similar tracked description
// (Jaccard similarity, spec §4.6) and returns the tier it last ran at.
func (c *Controller) matchSimilarPattern(description string) (Tier, bool, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	type candidate struct {
		tier Tier
		sim  float64
	}
	var best *candidate
	for _, h := range c.history {
		if h.description == "" {
			continue
		}
		sim := jaccardSimilarity(description, h.description)
		if sim >= SimilarityThreshold && (best == nil || sim > best.sim) {
			best = &candidate{tier: h.lastTier, sim: sim}
		}
	}
	if best == nil {
		return "", false, 0
	}
	return best.tier, true, best.sim
}

// RecordResult records a task outcome at fp, bounding per-fingerprint
// history to MaxHistoryPerHash and global history to MaxTotalHistory
// via LRU-by-most-recently-touched-fingerprint eviction (spec §9).
// description, if non-empty, seeds the pattern matcher for future
// similarity lookups.
func (c *Controller) RecordResult(fp Fingerprint, description string, tier Tier, success bool) DowngradeResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.history[fp]
	if !ok {
		h = &fingerprintHistory{}
		c.history[fp] = h
	}
	if description != "" {
		h.description = description
	}

	c.seq++
	h.records = append(h.records, historyRecord{tier: tier, success: success, seq: c.seq})
	if len(h.records) > MaxHistoryPerHash {
		h.records = h.records[len(h.records)-MaxHistoryPerHash:]
	}
	h.lastSeq = c.seq
	h.lastTier = tier
	if !ok {
		c.evictIfNeeded()
	}

	if !success {
		h.successRun = 0
		return DowngradeResult{CurrentTier: tier, RecommendedTier: tier, ConsecutiveSuccesses: 0}
	}

	h.successRun++
	result := DowngradeResult{
		CurrentTier:          tier,
		RecommendedTier:      tier,
		ConsecutiveSuccesses: h.successRun,
		CostSavingsFactor:    1.0,
	}
	if h.successRun >= DowngradeThreshold && tier != TierFrugal {
		if lower, ok := PrevTier(tier); ok {
			result.ShouldDowngrade = true
			result.RecommendedTier = lower
			result.CostSavingsFactor = CanonicalCostFactor[tier] / CanonicalCostFactor[lower]
		}
	}
	return result
}

// evictIfNeeded drops the least-recently-touched fingerprint once the
// total tracked fingerprint count exceeds MaxTotalHistory. Caller must
// hold c.mu.
func (c *Controller) evictIfNeeded() {
	if len(c.history) <= MaxTotalHistory {
		return
	}
	var oldestFP Fingerprint
	var oldestSeq uint64 = ^uint64(0)
	for fp, h := range c.history {
		if h.lastSeq < oldestSeq {
			oldestSeq = h.lastSeq
			oldestFP = fp
		}
	}
	delete(c.history, oldestFP)
}

// DowngradeResult mirrors the downgrade evaluation shape from
// _examples/original_source/src/ouroboros/routing/downgrade.py.
type DowngradeResult struct {
	ShouldDowngrade      bool
	CurrentTier          Tier
	RecommendedTier      Tier
	ConsecutiveSuccesses int
	CostSavingsFactor    float64
}

// jaccardSimilarity computes word-set Jaccard similarity between two
// descriptions: whitespace-split, lowercased, punctuation-stripped
// tokens (spec §4.6, matching downgrade.py's PatternMatcher exactly).
func jaccardSimilarity(a, b string) float64 {
	ta := tokenizeForSimilarity(a)
	tb := tokenizeForSimilarity(b)

	if len(ta) == 0 && len(tb) == 0 {
		return 1.0
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}

	union := make(map[string]struct{}, len(ta)+len(tb))
	for t := range ta {
		union[t] = struct{}{}
	}
	intersection := 0
	for t := range tb {
		if _, ok := ta[t]; ok {
			intersection++
		}
		union[t] = struct{}{}
	}
	return float64(intersection) / float64(len(union))
}

const stripPunct = ".,;:!?\"'()-[]{}/<>"

func tokenizeForSimilarity(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	tokens := make(map[string]struct{}, len(words))
	for _, w := range words {
		cleaned := strings.Trim(w, stripPunct)
		if cleaned != "" {
			tokens[cleaned] = struct{}{}
		}
	}
	return tokens
}

// TrackedFingerprints returns all tracked fingerprints, sorted, for
// diagnostics and tests.
func (c *Controller) TrackedFingerprints() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.history))
	for fp := range c.history {
		out = append(out, fp.String())
	}
	sort.Strings(out)
	return out
}
