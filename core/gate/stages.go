package gate

import (
	"fmt"
	"time"

	"commitmentkernel/capability"
	"commitmentkernel/core/ledger"
	"commitmentkernel/observability/logging"
)

// stageIdentity is stage 1: the declaring identity must have a valid
// continuity record. Returns true if the pipeline should short-circuit.
func (g *Gate) stageIdentity(decl Declaration, t *stageTracker) bool {
	started := g.nowFn()
	ok := !decl.Declarer.IsZero() && g.knownIdentity(decl.Declarer)
	detail := "identity has a valid continuity record"
	if !ok {
		detail = "declaring identity is unknown or has no continuity record"
	}
	t.record(StageIdentity, true, ok, detail, g.nowFn().Sub(started))
	if !ok {
		t.escalate(DecisionDenied, detail)
		return true
	}
	return false
}

// stageRateLimit is stage 2: a fast-fail admission check, independent
// of capability grants.
func (g *Gate) stageRateLimit(decl Declaration, t *stageTracker) bool {
	started := g.nowFn()
	ok := true
	if g.limiter != nil {
		ok = g.limiter.Allow(decl.Declarer, capability.Tier(decl.Tier))
	}
	detail := "within the tier's rate-limit window"
	if !ok {
		detail = "rate limit exceeded for identity/tier"
	}
	t.record(StageRateLimit, true, ok, detail, g.nowFn().Sub(started))
	if !ok {
		t.escalate(DecisionDenied, detail)
		return true
	}
	return false
}

// stageCapability is stage 3: every required capability id must be
// held, effective now, and its scope must cover the declaration.
func (g *Gate) stageCapability(decl Declaration, t *stageTracker) ([]*capability.Grant, bool) {
	started := g.nowFn()
	now := g.nowFn()

	if len(decl.RequiredCapabilities) == 0 {
		result := g.caps.Check(decl.Declarer, decl.Domain, decl.Scope)
		detail := "capability check covered the declaration"
		if !result.Authorized {
			detail = result.DenialReason
		}
		t.record(StageCapability, true, result.Authorized, detail, g.nowFn().Sub(started))
		if !result.Authorized {
			g.log().Warn("capability check denied", "reason", detail, logging.MaskIdentity(decl.Declarer.String()))
			t.escalate(DecisionDenied, detail)
			return nil, true
		}
		if result.MatchedGrant != nil {
			return []*capability.Grant{result.MatchedGrant}, false
		}
		return nil, false
	}

	matched := make([]*capability.Grant, 0, len(decl.RequiredCapabilities))
	for _, capID := range decl.RequiredCapabilities {
		grant, ok := g.caps.Get(capID)
		if !ok {
			detail := "required capability not found"
			t.record(StageCapability, true, false, detail, g.nowFn().Sub(started))
			g.log().Warn("capability check denied", "reason", detail, logging.MaskCapabilityID(string(capID)))
			t.escalate(DecisionDenied, detail)
			return nil, true
		}
		if grant.Grantee != decl.Declarer {
			detail := "capability is not held by the declaring identity"
			t.record(StageCapability, true, false, detail, g.nowFn().Sub(started))
			g.log().Warn("capability check denied", "reason", detail, logging.MaskCapabilityID(string(capID)), logging.MaskIdentity(decl.Declarer.String()))
			t.escalate(DecisionDenied, detail)
			return nil, true
		}
		if !grant.EffectiveAt(now) {
			detail := "capability is not effective now (revoked or expired)"
			t.record(StageCapability, true, false, detail, g.nowFn().Sub(started))
			g.log().Warn("capability check denied", "reason", detail, logging.MaskCapabilityID(string(capID)))
			t.escalate(DecisionDenied, detail)
			return nil, true
		}
		if !grant.Domain.Matches(decl.Domain) {
			detail := fmt.Sprintf("capability does not cover domain %q", decl.Domain)
			t.record(StageCapability, true, false, detail, g.nowFn().Sub(started))
			g.log().Warn("capability check denied", "reason", detail, logging.MaskCapabilityID(string(capID)))
			t.escalate(DecisionDenied, detail)
			return nil, true
		}
		if !grant.Scope.Covers(decl.Scope) {
			detail := "capability does not cover the requested scope"
			t.record(StageCapability, true, false, detail, g.nowFn().Sub(started))
			g.log().Warn("capability check denied", "reason", detail, logging.MaskCapabilityID(string(capID)))
			t.escalate(DecisionDenied, detail)
			return nil, true
		}
		matched = append(matched, grant)
	}

	t.record(StageCapability, true, true, "all required capabilities held and effective", g.nowFn().Sub(started))
	return matched, false
}

// stageScope is stage 4: declared targets and operations must lie
// inside the union of the matched grants' scopes — no escalation
// beyond what was actually granted.
func (g *Gate) stageScope(decl Declaration, t *stageTracker, matched []*capability.Grant) bool {
	started := g.nowFn()

	union := capability.Scope{}
	for _, grant := range matched {
		union.Targets = append(union.Targets, grant.Scope.Targets...)
		union.Operations = append(union.Operations, grant.Scope.Operations...)
	}

	ok := len(matched) == 0 || union.Covers(decl.Scope)
	detail := "declared scope lies within the union of matched grant scopes"
	if !ok {
		detail = "declared scope escalates beyond the union of matched grant scopes"
	}
	t.record(StageScope, true, ok, detail, g.nowFn().Sub(started))
	if !ok {
		t.escalate(DecisionDenied, detail)
		return true
	}
	return false
}

// stagePolicy is stage 5: run the enabled policies in priority order
// and fold their triggered rules into the tracker's decision.
func (g *Gate) stagePolicy(decl Declaration, t *stageTracker) {
	started := g.nowFn()
	result := capability.Evaluate(g.policies, decl.EvalContext())

	for _, r := range result.Results {
		if r.Triggered {
			t.ruleRefs = append(t.ruleRefs, fmt.Sprintf("%s/%s", r.PolicyID, r.RuleID))
		}
	}

	detail := fmt.Sprintf("policy evaluation concluded %s", actionToDecision(result.Effective).String())
	t.record(StagePolicy, true, result.Effective != capability.ActionDeny, detail, g.nowFn().Sub(started))
	t.escalate(actionToDecision(result.Effective), detail)
}

func actionToDecision(a capability.Action) DecisionKind {
	switch a {
	case capability.ActionDeny:
		return DecisionDenied
	case capability.ActionRequireHumanApproval:
		return DecisionPendingHumanReview
	case capability.ActionRequireAdditionalInfo:
		return DecisionPendingAdditionalInfo
	case capability.ActionAddCondition:
		return DecisionApprovedWithConditions
	default:
		return DecisionApproved
	}
}

// stageSafety is stage 6: the fixed safety invariants, checked
// regardless of what policy concluded.
func (g *Gate) stageSafety(decl Declaration, t *stageTracker) {
	started := g.nowFn()
	var notes []string
	passed := true

	if decl.Reversibility == Irreversible && decl.Domain.IsCritical() {
		notes = append(notes, "irreversibility guard: irreversible action in a critical domain requires human review")
		t.escalate(DecisionPendingHumanReview, "irreversible action in a critical domain")
	}

	if decl.Scope.IsGlobal() {
		notes = append(notes, "global-scope guard: global scope requires human review")
		t.escalate(DecisionPendingHumanReview, "global scope requested")
	}

	if decl.Atomic && len(decl.Legs) < 2 {
		notes = append(notes, "atomicity precondition: an atomic settlement must declare at least two legs up front")
		t.escalate(DecisionDenied, "multi-leg settlement declares partial legs")
		passed = false
	}

	if decl.Budget.Kind != BudgetNone && g.book != nil {
		sufficient, detail := g.checkBudgetSufficiency(decl)
		notes = append(notes, detail)
		if !sufficient {
			t.escalate(DecisionDenied, detail)
			passed = false
		}
	}

	detail := "no safety invariant triggered"
	if len(notes) > 0 {
		detail = joinNotes(notes)
	}
	t.record(StageSafety, true, passed, detail, g.nowFn().Sub(started))
}

func (g *Gate) checkBudgetSufficiency(decl Declaration) (bool, string) {
	entries := g.book.Entries()
	switch decl.Budget.Kind {
	case BudgetAttention:
		available := ledger.AttentionAllocation(entries, decl.Declarer.String(), g.cfg.AttentionCapacity)
		if available < decl.Budget.Amount {
			return false, fmt.Sprintf("budget sufficiency: requested %d attention units exceeds available %d", decl.Budget.Amount, available)
		}
		return true, fmt.Sprintf("budget sufficiency: %d attention units available, %d requested", available, decl.Budget.Amount)
	case BudgetFinancial:
		balance, err := ledger.FinancialBalance(entries, decl.Declarer.String(), decl.Budget.Asset)
		if err != nil {
			return false, fmt.Sprintf("budget sufficiency: %v", err)
		}
		if balance.Negative || balance.Magnitude.Uint64() < decl.Budget.Amount {
			return false, "budget sufficiency: insufficient projected balance"
		}
		return true, "budget sufficiency: projected balance covers the declared consumption"
	default:
		return true, "no bounded resource declared"
	}
}

func joinNotes(notes []string) string {
	out := notes[0]
	for _, n := range notes[1:] {
		out += "; " + n
	}
	return out
}

// stageRisk is stage 7: aggregate triggered factors into an overall
// risk level (max over severities) and record mitigations.
func (g *Gate) stageRisk(decl Declaration, t *stageTracker) RiskAssessment {
	started := g.nowFn()

	factors := []RiskFactor{{Name: "declared_risk_class", Severity: decl.RiskClass}}
	if decl.Domain.IsCritical() {
		factors = append(factors, RiskFactor{Name: "critical_domain", Severity: RiskMedium})
	}
	if decl.Reversibility == Irreversible {
		factors = append(factors, RiskFactor{Name: "irreversible", Severity: RiskHigh})
	}
	if decl.Scope.IsGlobal() {
		factors = append(factors, RiskFactor{Name: "global_scope", Severity: RiskHigh})
	}
	if decl.Atomic && len(decl.Legs) > 1 {
		factors = append(factors, RiskFactor{Name: "multi_leg_settlement", Severity: RiskMedium})
	}

	overall := RiskLow
	for _, f := range factors {
		if f.Severity > overall {
			overall = f.Severity
		}
	}

	var mitigations []string
	if overall >= RiskHigh {
		mitigations = append(mitigations, "recommend additional reviewer attention")
	}

	t.record(StageRisk, true, true, fmt.Sprintf("overall risk: %s", overall), g.nowFn().Sub(started))
	return RiskAssessment{Overall: overall, Factors: factors, Mitigations: mitigations}
}

// applyTierRule implements tier-aware approval: tiers 0-1 may
// auto-approve with conditions; tier 2+ is always forced to
// PendingHumanReview. It runs after policy evaluation and overrides
// any Approved outcome, but a Deny from an earlier stage is never
// relaxed (the monotone escalate call below enforces that).
func (g *Gate) applyTierRule(decl Declaration, t *stageTracker) {
	if g.cfg.AutoApproveTiers[decl.Tier] {
		if t.kind == DecisionApproved {
			t.kind = DecisionApprovedWithConditions
			t.ruleRefs = append(t.ruleRefs, "notify-governance", "auto-rollback-on-regression", "canary-required")
		}
		return
	}
	t.escalate(DecisionPendingHumanReview, fmt.Sprintf("tier %d requires human review", decl.Tier))
}

// applyObservationWindow enforces the minimum waiting period between a
// declaration's stabilization and its execution, keyed by tier. The
// Gate never produces an Approved (or conditionally approved) card
// before the window elapses; it may still produce a PendingReview
// card earlier.
func (g *Gate) applyObservationWindow(decl Declaration, t *stageTracker) time.Time {
	window, ok := g.cfg.ObservationWindows[decl.Tier]
	if !ok || window <= 0 {
		return time.Time{}
	}

	deadline := decl.Header.CreatedAt.Add(window)
	if decl.Header.CreatedAt.IsZero() {
		return deadline
	}

	if t.kind == DecisionApproved || t.kind == DecisionApprovedWithConditions {
		if g.nowFn().Before(deadline) {
			t.kind = DecisionPendingHumanReview
			t.note = "observation window has not yet elapsed"
		}
	}
	return deadline
}
