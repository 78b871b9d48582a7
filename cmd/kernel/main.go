// Command kernel wires a clock, event fabric, capability store, policy
// set, commitment gate, and ledger together, then walks a single
// commitment from declaration through adjudication, recording the
// declaration and the decision in the ledger and logging each stage
// with structured output. No settlement is executed. It is the kernel's
// reference entrypoint, not a production service: RPC transport, CLI
// subcommands, and persistence are external collaborators.
package main

import (
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"commitmentkernel/capability"
	"commitmentkernel/config"
	"commitmentkernel/core/clock"
	"commitmentkernel/core/fabric"
	"commitmentkernel/core/gate"
	"commitmentkernel/core/identity"
	"commitmentkernel/core/ledger"
	"commitmentkernel/observability"
	"commitmentkernel/observability/logging"
)

func main() {
	configFile := flag.String("config", "./kernel.toml", "Path to the kernel configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.SetupWithOptions("commitment-kernel", cfg.Environment, logging.Options{RotateFile: cfg.LogFile})
	logger.Info("commitment kernel starting", "config", *configFile, "node_id", cfg.NodeID)

	clk := clock.New(clock.NodeID(cfg.NodeID), clock.WithMaxDrift(cfg.ClockMaxDriftMS))
	events := fabric.New(clk)
	caps := capability.NewStore()
	book := ledger.New()
	metrics := observability.Metrics()

	rateLimits := make([]capability.TierLimit, 0, len(cfg.RateLimits))
	for _, rl := range cfg.RateLimits {
		rateLimits = append(rateLimits, capability.TierLimit{
			Tier:   capability.Tier(rl.Tier),
			Count:  rl.Limit,
			Window: time.Duration(rl.Seconds) * time.Second,
		})
	}
	limiter := capability.NewRateLimiter(rateLimits)

	observationWindows := make(map[int]time.Duration, len(cfg.ObservationWindows))
	for _, ow := range cfg.ObservationWindows {
		observationWindows[ow.Tier] = time.Duration(ow.Seconds) * time.Second
	}

	gateCfg := gate.Config{
		ObservationWindows: observationWindows,
		AttentionCapacity:  1_000_000,
		AutoApproveTiers:   map[int]bool{0: true, 1: true},
	}

	book.WithLogger(logger)

	policies, err := capability.LoadPolicies(cfg.PolicyFile, cfg.PolicyDefaultEnable)
	if err != nil {
		logger.Error("failed to load policy catalog, falling back to defaults", "error", err, "policy_file", cfg.PolicyFile)
		policies = nil
	}
	if len(policies) == 0 {
		policies = defaultPolicies()
	}
	g := gate.New(caps, limiter, book, policies, gateCfg).WithMetrics(metrics).WithLogger(logger)

	walkSampleCommitment(logger, metrics, events, caps, book, g)
}

// walkSampleCommitment demonstrates the full lifecycle: register an
// identity, grant it a capability, declare a commitment, adjudicate
// it, and append the declaration and the gate's decision to the ledger.
func walkSampleCommitment(logger *slog.Logger, metrics *observability.KernelMetrics, events *fabric.Fabric, caps *capability.Store, book *ledger.Ledger, g *gate.Gate) {
	agent, err := identity.Derive(identity.OrganizationalMaterial{OrgID: "demo-agent", Salt: [16]byte{1}})
	if err != nil {
		logger.Error("failed to derive demo identity", "error", err)
		return
	}
	g.RegisterIdentity(agent)

	grant, err := caps.Grant(agent, agent, capability.DomainFinance,
		capability.Scope{Targets: []string{"acct:*"}, Operations: []string{"transfer"}},
		capability.Validity{Start: time.Now().Add(-time.Minute)})
	if err != nil {
		logger.Error("failed to grant capability", "error", err)
		return
	}

	if _, err := events.Emit(agent, fabric.StageGovernance, fabric.CapabilityGrantedPayload{
		CapabilityID: string(grant.ID), Grantee: agent.String(), Domain: string(capability.DomainFinance),
	}, nil); err != nil {
		logger.Error("failed to emit capability grant event", "error", err)
	}

	decl := gate.Declaration{
		CommitmentID:  "demo-commitment-1",
		Declarer:      agent,
		Domain:        capability.DomainFinance,
		Outcome:       "transfer 100 USD to acct:counterparty",
		Scope:         capability.Scope{Targets: []string{"acct:counterparty"}, Operations: []string{"transfer"}},
		Reversibility: gate.Reversible,
		Tier:          0,
		Header:        gate.AuditHeader{Creator: agent, CreatedAt: time.Now().Add(-time.Hour), TraceID: "demo-trace-1"},
	}

	declEvent, err := events.Emit(agent, fabric.StageCommitment, fabric.CommitmentDeclaredPayload{
		DeclarationID: decl.CommitmentID, Domain: string(decl.Domain), Reversible: true, Tier: decl.Tier,
	}, nil)
	if err != nil {
		logger.Error("failed to emit declaration event", "error", err)
		return
	}

	card := g.Adjudicate(decl)
	logger.Info("adjudicated commitment", "decision", card.Decision.Kind.String(), "decision_id", card.DecisionID)

	if _, err := book.Append("demo-trace-1", ledger.KindCommitment, decl.CommitmentID, ledger.DeclaredPayload{
		CommitmentID: decl.CommitmentID, Identity: agent.String(), Domain: string(decl.Domain), Tier: decl.Tier,
	}); err != nil {
		metrics.ObserveLedgerError(errorReason(err))
		logger.Error("failed to append declaration to ledger", "error", err)
		return
	}
	metrics.SetLedgerDepth(book.Len())

	if _, err := book.Append("demo-trace-1", ledger.KindCommitment, decl.CommitmentID, ledger.DecisionPayload{
		CommitmentID: decl.CommitmentID, DecisionID: card.DecisionID, Decision: card.Decision.Kind.String(), Reason: card.Decision.DenialReason,
	}); err != nil {
		metrics.ObserveLedgerError(errorReason(err))
		logger.Error("failed to append decision to ledger", "error", err)
		return
	}
	metrics.SetLedgerDepth(book.Len())

	if _, err := events.Emit(agent, fabric.StageGovernance, fabric.PolicyEvaluatedPayload{
		PolicyID: "default", Decision: card.Decision.Kind.String(),
	}, []uuid.UUID{declEvent.ID}); err != nil {
		logger.Error("failed to emit policy-evaluated event", "error", err)
	}

	if ok, badIndex := book.VerifyChain(); !ok {
		logger.Error("ledger integrity check failed", "bad_index", badIndex)
		return
	}

	status := ledger.ProjectCommitmentStatus(book.Entries(), decl.CommitmentID)
	logger.Info("projected commitment status", "commitment_id", decl.CommitmentID, "status", status)

	report := events.VerifyAll()
	logger.Info("fabric integrity sweep", "total", report.Total, "clean", report.Clean)
}

// errorReason maps a ledger append error to a low-cardinality label for
// the ledger_append_errors_total metric, rather than the full error text.
func errorReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrAtomicityViolation):
		return "atomicity_violation"
	case errors.Is(err, ledger.ErrChainMismatch):
		return "chain_mismatch"
	default:
		return "unknown"
	}
}

// defaultPolicies seeds a minimal policy set matching the safety
// posture described for the kernel: always allow baseline traffic,
// but require human approval for anything with global scope, in any
// domain.
func defaultPolicies() []capability.Policy {
	return []capability.Policy{
		{
			ID: "baseline", Name: "baseline admission", Priority: 0, Enabled: true,
			Rules: []capability.Rule{
				{ID: "allow-default", Description: "allow by default", Condition: capability.CondAlways, Action: capability.ActionAllow},
			},
		},
		{
			ID: "global-scope-review", Name: "global scope requires review", Priority: 10, Enabled: true,
			Rules: []capability.Rule{
				{ID: "global-scope", Description: "escalate global scope", Condition: capability.CondScopeIsGlobal, Action: capability.ActionRequireHumanApproval},
			},
		},
	}
}
