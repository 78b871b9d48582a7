package ledger

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func credit(identity, asset string, n uint64) SignedAmount {
	return SignedAmount{Magnitude: uint256.NewInt(n), Negative: false}
}

func debit(identity, asset string, n uint64) SignedAmount {
	return SignedAmount{Magnitude: uint256.NewInt(n), Negative: true}
}

func TestAppendBuildsContiguousChain(t *testing.T) {
	l := New()

	_, err := l.Append("trace-1", KindAudit, "", DeclaredPayload{CommitmentID: "c1", Identity: "alice", Domain: "finance"})
	require.NoError(t, err)
	_, err = l.Append("trace-2", KindAudit, "", DeclaredPayload{CommitmentID: "c2", Identity: "bob", Domain: "finance"})
	require.NoError(t, err)

	ok, bad := l.VerifyChain()
	require.True(t, ok)
	require.Equal(t, -1, bad)
	require.Equal(t, 2, l.Len())
}

func TestVerifyChainDetectsTamperedPayload(t *testing.T) {
	l := New()
	_, err := l.Append("t1", KindAudit, "", DeclaredPayload{CommitmentID: "c1"})
	require.NoError(t, err)
	_, err = l.Append("t2", KindAudit, "", DeclaredPayload{CommitmentID: "c2"})
	require.NoError(t, err)
	_, err = l.Append("t3", KindAudit, "", DeclaredPayload{CommitmentID: "c3"})
	require.NoError(t, err)

	l.entries[1].Payload = DeclaredPayload{CommitmentID: "tampered"}

	ok, bad := l.VerifyChain()
	require.False(t, ok)
	require.Equal(t, 1, bad)
}

func TestCommitEntryRejectsAtomicPartialSettlement(t *testing.T) {
	l := New()
	entry, err := l.BuildEntry("t1", KindOutcome, "c1", SettlementPayload{
		CommitmentID: "c1",
		Atomic:       true,
		Legs: []SettlementLeg{
			{Identity: "alice", Asset: "USD", Amount: debit("alice", "USD", 500), Settled: true},
			{Identity: "bob", Asset: "USD", Amount: credit("bob", "USD", 500), Settled: false},
		},
	})
	require.NoError(t, err)

	err = l.CommitEntry(entry)
	require.ErrorIs(t, err, ErrAtomicityViolation)
	require.Equal(t, 0, l.Len())
}

func TestCommitEntryAcceptsFullySettledAtomicLegs(t *testing.T) {
	l := New()
	entry, err := l.BuildEntry("t1", KindOutcome, "c1", SettlementPayload{
		CommitmentID: "c1",
		Atomic:       true,
		Legs: []SettlementLeg{
			{Identity: "alice", Asset: "USD", Amount: debit("alice", "USD", 500), Settled: true},
			{Identity: "bob", Asset: "USD", Amount: credit("bob", "USD", 500), Settled: true},
		},
	})
	require.NoError(t, err)
	require.NoError(t, l.CommitEntry(entry))
}

func TestCommitEntryRejectsStaleBuiltEntry(t *testing.T) {
	l := New()
	stale, err := l.BuildEntry("t1", KindAudit, "", DeclaredPayload{CommitmentID: "c1"})
	require.NoError(t, err)

	// Another append happens between BuildEntry and CommitEntry.
	_, err = l.Append("t2", KindAudit, "", DeclaredPayload{CommitmentID: "c2"})
	require.NoError(t, err)

	err = l.CommitEntry(stale)
	require.ErrorIs(t, err, ErrChainMismatch)
}

func TestFinancialBalanceFoldsSettledLegs(t *testing.T) {
	l := New()
	_, err := l.Append("t1", KindOutcome, "c1", SettlementPayload{
		CommitmentID: "c1", Atomic: true,
		Legs: []SettlementLeg{{Identity: "alice", Asset: "USD", Amount: credit("alice", "USD", 1000), Settled: true}},
	})
	require.NoError(t, err)
	_, err = l.Append("t2", KindOutcome, "c2", SettlementPayload{
		CommitmentID: "c2", Atomic: true,
		Legs: []SettlementLeg{{Identity: "alice", Asset: "USD", Amount: debit("alice", "USD", 500), Settled: true}},
	})
	require.NoError(t, err)

	balance, err := FinancialBalance(l.Entries(), "alice", "USD")
	require.NoError(t, err)
	require.False(t, balance.Negative)
	require.Equal(t, uint64(500), balance.Magnitude.Uint64())
}

func TestFinancialBalanceEmptyTrajectoryErrors(t *testing.T) {
	l := New()
	_, err := FinancialBalance(l.Entries(), "nobody", "USD")
	require.ErrorIs(t, err, ErrEmptyTrajectory)
}

func TestAttentionAllocationNeverNegative(t *testing.T) {
	entries := []Entry{
		{Payload: AttentionPayload{Identity: "alice", Units: 80}},
		{Payload: AttentionPayload{Identity: "alice", Units: 50}},
	}
	remaining := AttentionAllocation(entries, "alice", 100)
	require.Equal(t, uint64(0), remaining)
}

func TestAttentionAllocationReleaseSaturatesAtCapacity(t *testing.T) {
	entries := []Entry{
		{Payload: AttentionPayload{Identity: "alice", Units: 10}},
		{Payload: AttentionPayload{Identity: "alice", Units: 50, Release: true}},
	}
	remaining := AttentionAllocation(entries, "alice", 100)
	require.Equal(t, uint64(100), remaining)
}

func TestCapabilitySetFoldsGrantsAndRevokes(t *testing.T) {
	entries := []Entry{
		{Payload: GrantedPayload{CapabilityID: "cap1", Grantee: "alice"}},
		{Payload: GrantedPayload{CapabilityID: "cap2", Grantee: "alice"}},
		{Payload: RevokedPayload{CapabilityID: "cap1"}},
	}
	set := CapabilitySet(entries, "alice")
	require.NotContains(t, set, "cap1")
	require.Contains(t, set, "cap2")
}

func TestProjectCommitmentStatusFoldsLifecycle(t *testing.T) {
	entries := []Entry{
		{CommitmentID: "c1", Payload: DeclaredPayload{CommitmentID: "c1"}},
		{CommitmentID: "c1", Payload: DecisionPayload{CommitmentID: "c1", Decision: "approved"}},
		{CommitmentID: "c1", Payload: FulfilledPayload{CommitmentID: "c1"}},
	}
	require.Equal(t, StatusFulfilled, ProjectCommitmentStatus(entries, "c1"))
	require.Equal(t, StatusUnknown, ProjectCommitmentStatus(entries, "unknown-id"))
}

func TestBuildEntryLinksPreviousHash(t *testing.T) {
	l := New().WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) })
	first, err := l.Append("t1", KindAudit, "", DeclaredPayload{CommitmentID: "c1"})
	require.NoError(t, err)

	second, err := l.BuildEntry("t2", KindAudit, "", DeclaredPayload{CommitmentID: "c2"})
	require.NoError(t, err)
	require.True(t, second.HasPrevious)
	require.Equal(t, first.EntryHash, second.PreviousHash)
}
