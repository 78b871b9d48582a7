package ledger

import (
	"github.com/holiman/uint256"
)

// SignedAmount is a fixed-width settlement amount with an explicit
// sign, since uint256.Int itself is unsigned. Projections accumulate
// these by adding magnitudes when signs agree and subtracting the
// smaller from the larger otherwise, matching ordinary signed
// arithmetic without ever wrapping a uint256 value.
type SignedAmount struct {
	Magnitude *uint256.Int `json:"magnitude"`
	Negative  bool         `json:"negative"`
}

// Zero returns the additive identity.
func Zero() SignedAmount {
	return SignedAmount{Magnitude: uint256.NewInt(0)}
}

// Add returns a + b as a new SignedAmount.
func (a SignedAmount) Add(b SignedAmount) SignedAmount {
	am := a.magnitude()
	bm := b.magnitude()

	if a.Negative == b.Negative {
		sum := new(uint256.Int).Add(am, bm)
		return SignedAmount{Magnitude: sum, Negative: a.Negative && sum.Sign() != 0}
	}

	switch am.Cmp(bm) {
	case 0:
		return Zero()
	case 1:
		diff := new(uint256.Int).Sub(am, bm)
		return SignedAmount{Magnitude: diff, Negative: a.Negative}
	default:
		diff := new(uint256.Int).Sub(bm, am)
		return SignedAmount{Magnitude: diff, Negative: b.Negative}
	}
}

func (a SignedAmount) magnitude() *uint256.Int {
	if a.Magnitude == nil {
		return uint256.NewInt(0)
	}
	return a.Magnitude
}

// IsZero reports whether the amount is exactly zero.
func (a SignedAmount) IsZero() bool {
	return a.magnitude().IsZero()
}

// SettlementLeg is one leg of a (possibly multi-leg) settlement.
type SettlementLeg struct {
	Identity string       `json:"identity"`
	Asset    string       `json:"asset"`
	Amount   SignedAmount `json:"amount"`
	Settled  bool         `json:"settled"`
}

// SettlementPayload records the consequence of an approved commitment:
// a set of legs that, if Atomic, must all be Settled or none of them
// are — enforcing the DvP/PvP atomicity contract.
type SettlementPayload struct {
	CommitmentID string          `json:"commitment_id"`
	Atomic       bool            `json:"atomic"`
	Legs         []SettlementLeg `json:"legs"`
}

func (SettlementPayload) Kind() string { return "outcome.settlement" }

// AllSettled reports whether every leg settled.
func (p SettlementPayload) AllSettled() bool {
	for _, leg := range p.Legs {
		if !leg.Settled {
			return false
		}
	}
	return true
}

// AnySettled reports whether at least one leg settled.
func (p SettlementPayload) AnySettled() bool {
	for _, leg := range p.Legs {
		if leg.Settled {
			return true
		}
	}
	return false
}

// AttentionPayload records an allocation or release against an
// identity's attention budget.
type AttentionPayload struct {
	Identity string `json:"identity"`
	Units    uint64 `json:"units"`
	Release  bool   `json:"release"`
}

func (AttentionPayload) Kind() string { return "outcome.attention" }

// DeclaredPayload records a commitment's declaration reaching the
// ledger (appended once the Gate has produced a decision card).
type DeclaredPayload struct {
	CommitmentID string `json:"commitment_id"`
	Identity     string `json:"identity"`
	Domain       string `json:"domain"`
	Tier         int    `json:"tier"`
}

func (DeclaredPayload) Kind() string { return "commitment.declared" }

// DecisionPayload records the Gate's decision for a commitment.
type DecisionPayload struct {
	CommitmentID string `json:"commitment_id"`
	DecisionID   string `json:"decision_id"`
	Decision     string `json:"decision"`
	Reason       string `json:"reason,omitempty"`
}

func (DecisionPayload) Kind() string { return "commitment.decision" }

// FulfilledPayload records a commitment reaching its terminal
// Fulfilled state.
type FulfilledPayload struct {
	CommitmentID string `json:"commitment_id"`
}

func (FulfilledPayload) Kind() string { return "commitment.fulfilled" }

// FailedPayload records a commitment reaching its terminal Failed
// state.
type FailedPayload struct {
	CommitmentID string `json:"commitment_id"`
	Reason       string `json:"reason"`
}

func (FailedPayload) Kind() string { return "commitment.failed" }

// AbandonedPayload records a caller-initiated cancellation of a
// pending commitment; cancellation is expressed in ledger state, never
// as an interruption of in-flight work.
type AbandonedPayload struct {
	CommitmentID string `json:"commitment_id"`
	Reason       string `json:"reason"`
}

func (AbandonedPayload) Kind() string { return "commitment.abandoned" }

// GrantedPayload records a capability grant being recorded to the
// ledger as an audit entry.
type GrantedPayload struct {
	CapabilityID string `json:"capability_id"`
	Grantee      string `json:"grantee"`
	Issuer       string `json:"issuer"`
	Domain       string `json:"domain"`
}

func (GrantedPayload) Kind() string { return "audit.capability_granted" }

// RevokedPayload records a capability revocation being recorded to the
// ledger as an audit entry.
type RevokedPayload struct {
	CapabilityID string `json:"capability_id"`
	Reason       string `json:"reason"`
}

func (RevokedPayload) Kind() string { return "audit.capability_revoked" }
