package ledger

import (
	"errors"
)

// ErrEmptyTrajectory is returned by FinancialBalance when the
// (identity, asset) pair has never appeared in any settlement entry —
// the projection refuses to report an implicit zero balance.
var ErrEmptyTrajectory = errors.New("ledger: empty trajectory for identity/asset")

// FinancialBalance folds every settled leg touching (identity, asset)
// into a net signed amount. An identity/asset pair that never appears
// in the ledger prefix returns ErrEmptyTrajectory rather than a zero
// balance, matching the balance-as-projection invariant: there is no
// implicit starting balance, only what has actually settled.
func FinancialBalance(entries []Entry, identity, asset string) (SignedAmount, error) {
	balance := Zero()
	seen := false

	for _, e := range entries {
		settlement, ok := e.Payload.(SettlementPayload)
		if !ok {
			continue
		}
		for _, leg := range settlement.Legs {
			if leg.Identity != identity || leg.Asset != asset || !leg.Settled {
				continue
			}
			seen = true
			balance = balance.Add(leg.Amount)
		}
	}

	if !seen {
		return SignedAmount{}, ErrEmptyTrajectory
	}
	return balance, nil
}

// AttentionAllocation folds allocate/release attention entries for
// identity into the units currently remaining out of totalCapacity.
// The result never goes negative: a release beyond what was allocated
// saturates at totalCapacity rather than overflowing.
func AttentionAllocation(entries []Entry, identity string, totalCapacity uint64) uint64 {
	remaining := totalCapacity
	for _, e := range entries {
		attn, ok := e.Payload.(AttentionPayload)
		if !ok || attn.Identity != identity {
			continue
		}
		if attn.Release {
			remaining += attn.Units
			if remaining > totalCapacity {
				remaining = totalCapacity
			}
			continue
		}
		if attn.Units > remaining {
			remaining = 0
			continue
		}
		remaining -= attn.Units
	}
	return remaining
}

// CapabilitySet folds capability grant/revoke audit entries for
// identity into the set of its currently active capability ids. This
// is a ledger-level replay, independent of the live capability.Store —
// used to audit that the store's in-memory state matches what the
// ledger actually recorded.
func CapabilitySet(entries []Entry, identity string) map[string]struct{} {
	active := make(map[string]struct{})
	for _, e := range entries {
		switch p := e.Payload.(type) {
		case GrantedPayload:
			if p.Grantee == identity {
				active[p.CapabilityID] = struct{}{}
			}
		case RevokedPayload:
			delete(active, p.CapabilityID)
		}
	}
	return active
}

// CommitmentStatus is the terminal or in-flight state a commitment's
// own ledger entries fold into.
type CommitmentStatus string

const (
	StatusUnknown    CommitmentStatus = "unknown"
	StatusDeclared   CommitmentStatus = "declared"
	StatusApproved   CommitmentStatus = "approved"
	StatusDenied     CommitmentStatus = "denied"
	StatusFulfilled  CommitmentStatus = "fulfilled"
	StatusFailed     CommitmentStatus = "failed"
	StatusAbandoned  CommitmentStatus = "abandoned"
)

// ProjectCommitmentStatus folds every entry scoped to commitmentID, in
// ledger order, into its current status.
func ProjectCommitmentStatus(entries []Entry, commitmentID string) CommitmentStatus {
	status := StatusUnknown
	for _, e := range entries {
		if e.CommitmentID != commitmentID {
			continue
		}
		switch p := e.Payload.(type) {
		case DeclaredPayload:
			status = StatusDeclared
		case DecisionPayload:
			switch p.Decision {
			case "denied":
				status = StatusDenied
			default:
				status = StatusApproved
			}
		case FulfilledPayload:
			status = StatusFulfilled
		case FailedPayload:
			status = StatusFailed
		case AbandonedPayload:
			status = StatusAbandoned
		}
	}
	return status
}
