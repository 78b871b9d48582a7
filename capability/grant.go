// Package capability implements the Capability & Policy Store: bounded
// authority grants with scoped validity, priority-ordered policy
// evaluation, and a per-identity/tier rate limiter. Grants are never
// deleted, only revoked in place, so the store remains a complete audit
// trail of every authority ever issued.
package capability

import (
	"time"

	"commitmentkernel/core/identity"
)

// Status is a grant's lifecycle state.
type Status uint8

const (
	StatusActive Status = iota
	StatusRevoked
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusRevoked:
		return "revoked"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ConditionKind enumerates the conditions a grant can attach.
type ConditionKind string

const (
	ConditionHumanApprovalRequired ConditionKind = "human_approval_required"
	ConditionRateLimit             ConditionKind = "rate_limit"
	ConditionTimeWindow            ConditionKind = "time_window"
)

// Condition is an attached constraint a grant carries beyond its scope
// and validity, surfaced to callers so the Gate can fold it into a
// decision card's conditions list.
type Condition struct {
	Kind  ConditionKind
	Value string
}

// Validity is the temporal window during which a grant may be
// effective. A zero End means the grant has no expiry.
type Validity struct {
	Start time.Time
	End   time.Time // zero value means unbounded
}

// Includes reports whether t falls within the validity window.
func (v Validity) Includes(t time.Time) bool {
	if t.Before(v.Start) {
		return false
	}
	if !v.End.IsZero() && t.After(v.End) {
		return false
	}
	return true
}

// CapabilityID identifies a single grant, unique for the life of the
// store that issued it.
type CapabilityID string

// Grant is a bounded authority assignment: grantee may exercise Domain
// within Scope during Validity, so long as Status is Active.
type Grant struct {
	ID         CapabilityID
	Grantee    identity.ID
	Issuer     identity.ID
	Domain     Domain
	Scope      Scope
	Validity   Validity
	Status     Status
	Conditions []Condition
	IssuedAt   time.Time
	RevokedAt  time.Time
	RevokedWhy string
}

// EffectiveAt reports whether the grant is usable at time t: active
// and within its validity window. Expiry by time is distinct from an
// explicit revocation but both make a grant ineffective.
func (g *Grant) EffectiveAt(t time.Time) bool {
	if g.Status != StatusActive {
		return false
	}
	return g.Validity.Includes(t)
}
