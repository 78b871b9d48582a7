// Package gate implements the Commitment Gate: the fixed seven-stage
// adjudication pipeline that turns a commitment declaration into a
// decision card. No stage ever silently converts an error into an
// approval; every declaration, even one that fails at stage one,
// yields a fully populated card.
package gate

import (
	"time"

	"commitmentkernel/capability"
	"commitmentkernel/core/identity"
	"commitmentkernel/core/ledger"
)

// Reversibility classifies how undoable a declaration's consequences
// are.
type Reversibility uint8

const (
	Reversible Reversibility = iota
	PartiallyReversible
	Irreversible
)

// EvidenceLevel is the audit evidence a declaration commits to
// producing once executed.
type EvidenceLevel uint8

const (
	EvidenceMinimal EvidenceLevel = iota
	EvidenceStandard
	EvidenceComprehensive
	EvidenceForensic
)

// RiskClass is the declaration's self-asserted risk classification,
// an input to stage 7's scoring, not its output.
type RiskClass uint8

const (
	RiskLow RiskClass = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskClass) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// AuditHeader carries provenance metadata every declaration must
// supply.
type AuditHeader struct {
	Creator   identity.ID
	CreatedAt time.Time
	TraceID   string
}

// BudgetRequest names the bounded resource a declaration consumes and
// how much of it, so stage 6's budget-sufficiency check can compare it
// against the relevant projection.
type BudgetRequest struct {
	Kind   BudgetKind
	Amount uint64 // attention units, or the asset amount when Kind == BudgetFinancial
	Asset  string // only meaningful when Kind == BudgetFinancial
}

// BudgetKind enumerates the bounded resources budget sufficiency can
// check against a projection.
type BudgetKind uint8

const (
	BudgetNone BudgetKind = iota
	BudgetAttention
	BudgetFinancial
)

// Declaration is a proposed, not-yet-executed action.
type Declaration struct {
	CommitmentID         string
	Declarer             identity.ID
	Domain               capability.Domain
	Outcome              string
	SuccessCriteria      string
	Scope                capability.Scope
	Budget               BudgetRequest
	Validity             capability.Validity
	Reversibility        Reversibility
	ReversibilityReason  string
	RequiredCapabilities []capability.CapabilityID
	EvidenceLevel        EvidenceLevel
	RiskClass            RiskClass
	PolicyTags           []string
	Tier                 int
	Legs                 []ledger.SettlementLeg // non-empty only for multi-leg settlements
	Atomic               bool
	Header               AuditHeader
}

// EvalContext projects the declaration down to the small, closed
// surface capability.Evaluate needs.
func (d Declaration) EvalContext() capability.EvalContext {
	return capability.EvalContext{
		Domain:       d.Domain,
		Scope:        d.Scope,
		Irreversible: d.Reversibility == Irreversible,
		Tier:         d.Tier,
		PolicyTags:   d.PolicyTags,
	}
}
