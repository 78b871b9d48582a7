package gate

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"commitmentkernel/capability"
	"commitmentkernel/core/identity"
	"commitmentkernel/core/ledger"
	"commitmentkernel/observability"
	"commitmentkernel/observability/logging"
)

// Config bundles the per-tier tunables the Gate needs beyond its
// collaborators: observation windows and auto-approval eligibility.
type Config struct {
	ObservationWindows map[int]time.Duration
	AttentionCapacity  uint64
	AutoApproveTiers   map[int]bool // tiers eligible for auto-approval with conditions
}

// DefaultConfig mirrors the spec's default observation windows (tiers
// 0-3: 30m / 1h / 24h / 72h) and auto-approves tiers 0-1.
func DefaultConfig() Config {
	return Config{
		ObservationWindows: map[int]time.Duration{
			0: 30 * time.Minute,
			1: time.Hour,
			2: 24 * time.Hour,
			3: 72 * time.Hour,
		},
		AttentionCapacity: 1_000_000,
		AutoApproveTiers:  map[int]bool{0: true, 1: true},
	}
}

// Gate is the seven-stage adjudication pipeline. It reads capabilities
// from a capability.Store, policies from the set passed to New,
// projections from a ledger.Ledger, and produces a DecisionCard for every declaration
// presented to Adjudicate. Multiple declarations may be adjudicated
// concurrently; the Gate itself holds no mutable per-declaration
// state.
type Gate struct {
	mu         sync.RWMutex
	identities map[identity.ID]struct{}

	caps     *capability.Store
	policies []capability.Policy
	limiter  *capability.RateLimiter
	book     *ledger.Ledger
	cfg      Config
	metrics  *observability.KernelMetrics
	logger   *slog.Logger
	nowFn    func() time.Time
}

// New constructs a Gate over the given collaborators.
func New(caps *capability.Store, limiter *capability.RateLimiter, book *ledger.Ledger, policies []capability.Policy, cfg Config) *Gate {
	return &Gate{
		identities: make(map[identity.ID]struct{}),
		caps:       caps,
		policies:   policies,
		limiter:    limiter,
		book:       book,
		cfg:        cfg,
		nowFn:      time.Now,
	}
}

// WithMetrics attaches a metrics sink; nil is safe and disables
// recording.
func (g *Gate) WithMetrics(m *observability.KernelMetrics) *Gate {
	g.metrics = m
	return g
}

// WithLogger attaches a structured logger; nil falls back to
// slog.Default().
func (g *Gate) WithLogger(l *slog.Logger) *Gate {
	g.logger = l
	return g
}

// WithClock overrides the Gate's time source, for deterministic tests.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.nowFn = now
	return g
}

// RegisterIdentity marks id as having a valid continuity record,
// satisfying stage 1. A real deployment would back this with the
// identity worldline's genesis and succession chain; the Gate only
// needs a yes/no answer at adjudication time.
func (g *Gate) RegisterIdentity(id identity.ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.identities[id] = struct{}{}
}

func (g *Gate) knownIdentity(id identity.ID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.identities[id]
	return ok
}

func (g *Gate) log() *slog.Logger {
	if g.logger != nil {
		return g.logger
	}
	return slog.Default()
}

// stageTracker accumulates StageResults and the running decision rank
// as the pipeline proceeds, folding every stage's contribution via the
// same monotone lattice the policy engine uses.
type stageTracker struct {
	stages     []StageResult
	kind       DecisionKind
	denyReason string
	note       string
	ruleRefs   []string
}

func (t *stageTracker) record(name StageName, ran, passed bool, detail string, dur time.Duration) {
	t.stages = append(t.stages, StageResult{Name: name, Ran: ran, Passed: passed, Detail: detail, Duration: dur})
}

// escalate raises the tracked decision to kind if kind is at least as
// strict as the current one, folding via the same monotone lattice the
// policy engine uses; a weaker kind can never relax a stricter prior
// decision. When kind is taken, note replaces the rationale note, and
// it also becomes the card's DenialReason when kind is Denied; when kind
// is weaker, note is discarded.
func (t *stageTracker) escalate(kind DecisionKind, note string) {
	if kind.stricterThan(t.kind) {
		t.kind = kind
		t.note = note
		if kind == DecisionDenied {
			t.denyReason = note
		}
	}
}

// Adjudicate runs the fixed seven-stage pipeline against decl and
// always returns a fully populated DecisionCard, even when an early
// stage short-circuits the remainder.
func (g *Gate) Adjudicate(decl Declaration) *DecisionCard {
	start := g.nowFn()
	tracker := &stageTracker{kind: DecisionApproved}

	shortCircuited := g.stageIdentity(decl, tracker)
	if !shortCircuited {
		shortCircuited = g.stageRateLimit(decl, tracker)
	}
	var matched []*capability.Grant
	if !shortCircuited {
		matched, shortCircuited = g.stageCapability(decl, tracker)
	}
	if !shortCircuited {
		shortCircuited = g.stageScope(decl, tracker, matched)
	}
	if !shortCircuited {
		g.stagePolicy(decl, tracker)
	}
	var risk RiskAssessment
	if !shortCircuited {
		g.stageSafety(decl, tracker)
		risk = g.stageRisk(decl, tracker)
	}
	padMissingStages(tracker)

	g.applyTierRule(decl, tracker)
	observationEnd := g.applyObservationWindow(decl, tracker)

	card := &DecisionCard{
		DecisionID:  uuid.New().String(),
		Declaration: decl,
		Decision: Decision{
			Kind:         tracker.kind,
			DenialReason: tracker.denyReason,
		},
		Rationale: Rationale{
			Summary:  rationaleSummary(tracker.kind, tracker.denyReason, tracker.note),
			RuleRefs: tracker.ruleRefs,
		},
		Risk:            risk,
		Stages:          tracker.stages,
		EvaluationTime:  g.nowFn().Sub(start),
		ObservationEnds: observationEnd,
	}

	if tracker.kind == DecisionApprovedWithConditions {
		card.Decision.Conditions = tracker.ruleRefs
	}
	if tracker.kind == DecisionPendingHumanReview {
		card.Decision.ReviewRequirements = reviewRequirementsFor(decl.Tier)
	}

	if g.metrics != nil {
		g.metrics.ObserveDecision(tracker.kind.String())
		for _, s := range tracker.stages {
			if s.Ran {
				g.metrics.ObserveStage(string(s.Name), s.Duration.Seconds())
			}
		}
	}
	g.log().Info("gate decision",
		"commitment_id", decl.CommitmentID,
		"decision", tracker.kind.String(),
		"tier", decl.Tier,
		logging.MaskIdentity(decl.Declarer.String()),
		logging.MaskTraceID(decl.Header.TraceID),
	)

	return card
}

// stageOrder is the fixed order the seven pipeline stages always
// appear in on a decision card, regardless of where the pipeline
// short-circuited.
var stageOrder = []StageName{
	StageIdentity, StageRateLimit, StageCapability, StageScope, StagePolicy, StageSafety, StageRisk,
}

// padMissingStages appends a not-ran placeholder for every stage the
// pipeline never reached, so every decision card's Stages slice always
// names all seven stages in order.
func padMissingStages(t *stageTracker) {
	ran := make(map[StageName]bool, len(t.stages))
	for _, s := range t.stages {
		ran[s.Name] = true
	}
	for _, name := range stageOrder {
		if !ran[name] {
			t.stages = append(t.stages, StageResult{Name: name, Ran: false, Detail: "not reached: pipeline short-circuited earlier"})
		}
	}
}

func rationaleSummary(kind DecisionKind, denyReason, note string) string {
	if denyReason != "" {
		return fmt.Sprintf("%s: %s", kind.String(), denyReason)
	}
	if note != "" {
		return fmt.Sprintf("%s: %s", kind.String(), note)
	}
	return kind.String()
}

func reviewRequirementsFor(tier int) []string {
	switch {
	case tier >= 4:
		return []string{"governance-board"}
	case tier == 3:
		return []string{"multi-reviewer-quorum"}
	case tier == 2:
		return []string{"single-reviewer"}
	default:
		return []string{"single-reviewer"}
	}
}
