package gate

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"commitmentkernel/capability"
	"commitmentkernel/core/identity"
	"commitmentkernel/core/ledger"
)

func testIdentity(t *testing.T, seed byte) identity.ID {
	t.Helper()
	id, err := identity.Derive(identity.PublicKeyMaterial{Scheme: "ed25519", Key: []byte{seed}})
	require.NoError(t, err)
	return id
}

func newTestGate(t *testing.T, book *ledger.Ledger, policies []capability.Policy) (*Gate, *capability.Store, identity.ID) {
	t.Helper()
	caps := NewTestCapStore()
	alice := testIdentity(t, 1)

	limiter := capability.NewRateLimiter([]capability.TierLimit{{Tier: 0, Count: 1000, Window: time.Minute}})
	g := New(caps, limiter, book, policies, DefaultConfig())
	g.RegisterIdentity(alice)
	return g, caps, alice
}

// NewTestCapStore is a small helper kept local to the test file so
// production code never depends on test-only constructors.
func NewTestCapStore() *capability.Store {
	return capability.NewStore()
}

func amount(n uint64, negative bool) ledger.SignedAmount {
	return ledger.SignedAmount{Magnitude: uint256.NewInt(n), Negative: negative}
}

func TestApprovedTransferScenario(t *testing.T) {
	book := ledger.New()
	g, caps, alice := newTestGate(t, book, nil)

	_, err := caps.Grant(alice, alice, capability.DomainFinance, capability.Scope{Targets: []string{"*"}, Operations: []string{"*"}}, capability.Validity{Start: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	bob := testIdentity(t, 2)
	_, err = book.Append("seed-1", ledger.KindOutcome, "seed", ledger.SettlementPayload{
		Atomic: true,
		Legs: []ledger.SettlementLeg{
			{Identity: alice.String(), Asset: "USD", Amount: amount(1000, false), Settled: true},
		},
	})
	require.NoError(t, err)

	decl := Declaration{
		CommitmentID: "c-approved",
		Declarer:     alice,
		Domain:       capability.DomainFinance,
		Scope:        capability.Scope{Targets: []string{"acct:bob"}, Operations: []string{"transfer"}},
		Budget:       BudgetRequest{Kind: BudgetFinancial, Amount: 500, Asset: "USD"},
		Reversibility: Reversible,
		Atomic:       true,
		Legs: []ledger.SettlementLeg{
			{Identity: alice.String(), Asset: "USD", Amount: amount(500, true), Settled: true},
			{Identity: bob.String(), Asset: "USD", Amount: amount(500, false), Settled: true},
		},
		Tier:   0,
		Header: AuditHeader{Creator: alice, CreatedAt: time.Now().Add(-time.Hour)},
	}

	card := g.Adjudicate(decl)
	require.Equal(t, DecisionApprovedWithConditions, card.Decision.Kind, "tier 0 auto-approves with conditions")
	require.NotEmpty(t, card.Decision.Conditions)
}

func TestDeniedOverspendScenario(t *testing.T) {
	book := ledger.New()
	g, caps, alice := newTestGate(t, book, nil)

	_, err := caps.Grant(alice, alice, capability.DomainFinance, capability.Scope{Targets: []string{"*"}, Operations: []string{"*"}}, capability.Validity{Start: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	_, err = book.Append("seed-1", ledger.KindOutcome, "seed", ledger.SettlementPayload{
		Atomic: true,
		Legs: []ledger.SettlementLeg{
			{Identity: alice.String(), Asset: "USD", Amount: amount(1000, false), Settled: true},
		},
	})
	require.NoError(t, err)

	decl := Declaration{
		CommitmentID: "c-denied",
		Declarer:     alice,
		Domain:       capability.DomainFinance,
		Scope:        capability.Scope{Targets: []string{"acct:bob"}, Operations: []string{"transfer"}},
		Budget:       BudgetRequest{Kind: BudgetFinancial, Amount: 2000, Asset: "USD"},
		Tier:         0,
		Header:       AuditHeader{Creator: alice, CreatedAt: time.Now().Add(-time.Hour)},
	}

	card := g.Adjudicate(decl)
	require.Equal(t, DecisionDenied, card.Decision.Kind)
	require.Contains(t, card.Decision.DenialReason, "budget")
}

func TestPendingHumanReviewForIrreversibleCriticalDomain(t *testing.T) {
	book := ledger.New()
	g, caps, alice := newTestGate(t, book, nil)

	_, err := caps.Grant(alice, alice, capability.DomainFinance, capability.Scope{Targets: []string{"*"}, Operations: []string{"*"}}, capability.Validity{Start: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	decl := Declaration{
		CommitmentID:  "c-review",
		Declarer:      alice,
		Domain:        capability.DomainFinance,
		Scope:         capability.Scope{Targets: []string{"acct:bob"}, Operations: []string{"transfer"}},
		Reversibility: Irreversible,
		Tier:          0,
		Header:        AuditHeader{Creator: alice, CreatedAt: time.Now().Add(-time.Hour)},
	}

	card := g.Adjudicate(decl)
	require.Equal(t, DecisionPendingHumanReview, card.Decision.Kind)
}

func TestRevocationTakesEffectAtStage3(t *testing.T) {
	book := ledger.New()
	g, caps, alice := newTestGate(t, book, nil)

	grant, err := caps.Grant(alice, alice, capability.DomainFinance, capability.Scope{Targets: []string{"*"}, Operations: []string{"*"}}, capability.Validity{Start: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	require.NoError(t, caps.Revoke(grant.ID, "issuer requested"))

	decl := Declaration{
		CommitmentID: "c-revoked",
		Declarer:     alice,
		Domain:       capability.DomainFinance,
		Scope:        capability.Scope{Targets: []string{"acct:bob"}, Operations: []string{"transfer"}},
		Tier:         0,
		Header:       AuditHeader{Creator: alice, CreatedAt: time.Now().Add(-time.Hour)},
	}

	card := g.Adjudicate(decl)
	require.Equal(t, DecisionDenied, card.Decision.Kind)

	var capStage StageResult
	for _, s := range card.Stages {
		if s.Name == StageCapability {
			capStage = s
		}
	}
	require.False(t, capStage.Passed)
}

func TestUnknownIdentityShortCircuitsWithFullCard(t *testing.T) {
	book := ledger.New()
	g, _, _ := newTestGate(t, book, nil)
	stranger := testIdentity(t, 99)

	decl := Declaration{
		CommitmentID: "c-stranger",
		Declarer:     stranger,
		Domain:       capability.DomainFinance,
	}
	card := g.Adjudicate(decl)
	require.Equal(t, DecisionDenied, card.Decision.Kind)
	require.Len(t, card.Stages, 7, "a short-circuited decision still names all seven stages")
	require.True(t, card.Stages[0].Ran)
	require.False(t, card.Stages[1].Ran, "rate limit stage should not have run after identity failed")
}

func TestTier2AlwaysPendingHumanReview(t *testing.T) {
	book := ledger.New()
	g, caps, alice := newTestGate(t, book, nil)
	_, err := caps.Grant(alice, alice, capability.DomainFinance, capability.Scope{Targets: []string{"*"}, Operations: []string{"*"}}, capability.Validity{Start: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	decl := Declaration{
		CommitmentID: "c-tier2",
		Declarer:     alice,
		Domain:       capability.DomainFinance,
		Scope:        capability.Scope{Targets: []string{"acct:bob"}, Operations: []string{"transfer"}},
		Tier:         2,
		Header:       AuditHeader{Creator: alice, CreatedAt: time.Now().Add(-time.Hour)},
	}

	card := g.Adjudicate(decl)
	require.Equal(t, DecisionPendingHumanReview, card.Decision.Kind)
	require.NotEmpty(t, card.Decision.ReviewRequirements)
}

func TestObservationWindowBlocksEarlyApproval(t *testing.T) {
	book := ledger.New()
	g, caps, alice := newTestGate(t, book, nil)
	_, err := caps.Grant(alice, alice, capability.DomainFinance, capability.Scope{Targets: []string{"*"}, Operations: []string{"*"}}, capability.Validity{Start: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	decl := Declaration{
		CommitmentID: "c-window",
		Declarer:     alice,
		Domain:       capability.DomainFinance,
		Scope:        capability.Scope{Targets: []string{"acct:bob"}, Operations: []string{"transfer"}},
		Tier:         0,
		Header:       AuditHeader{Creator: alice, CreatedAt: time.Now()}, // just stabilized, window not elapsed
	}

	card := g.Adjudicate(decl)
	require.Equal(t, DecisionPendingHumanReview, card.Decision.Kind)
	require.False(t, card.ObservationEnds.IsZero())
}

func TestAtomicityPreconditionRejectsPartialLegDeclaration(t *testing.T) {
	book := ledger.New()
	g, caps, alice := newTestGate(t, book, nil)
	_, err := caps.Grant(alice, alice, capability.DomainFinance, capability.Scope{Targets: []string{"*"}, Operations: []string{"*"}}, capability.Validity{Start: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	decl := Declaration{
		CommitmentID: "c-atomic",
		Declarer:     alice,
		Domain:       capability.DomainFinance,
		Scope:        capability.Scope{Targets: []string{"acct:bob"}, Operations: []string{"transfer"}},
		Atomic:       true,
		Legs:         nil, // atomic but no legs declared
		Tier:         0,
		Header:       AuditHeader{Creator: alice, CreatedAt: time.Now().Add(-time.Hour)},
	}

	card := g.Adjudicate(decl)
	require.Equal(t, DecisionDenied, card.Decision.Kind)
}
