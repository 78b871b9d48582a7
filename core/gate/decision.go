package gate

import "time"

// DecisionKind is the final verdict a decision card carries.
type DecisionKind uint8

const (
	DecisionApproved DecisionKind = iota
	DecisionApprovedWithConditions
	DecisionPendingHumanReview
	DecisionPendingAdditionalInfo
	DecisionDenied
)

func (d DecisionKind) String() string {
	switch d {
	case DecisionApproved:
		return "approved"
	case DecisionApprovedWithConditions:
		return "approved_with_conditions"
	case DecisionPendingHumanReview:
		return "pending_human_review"
	case DecisionPendingAdditionalInfo:
		return "pending_additional_info"
	case DecisionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// rank mirrors capability.Action's monotone lattice so that folding
// stage outcomes together never relaxes a stricter prior outcome.
func (d DecisionKind) rank() int {
	switch d {
	case DecisionDenied:
		return 4
	case DecisionPendingHumanReview:
		return 3
	case DecisionPendingAdditionalInfo:
		return 2
	case DecisionApprovedWithConditions:
		return 1
	case DecisionApproved:
		return 0
	default:
		return 0
	}
}

// stricterThan reports whether d is at least as strict as other.
func (d DecisionKind) stricterThan(other DecisionKind) bool {
	return d.rank() >= other.rank()
}

// Decision is the full verdict: a kind plus the data each kind
// attaches (conditions, review requirements, a denial reason).
type Decision struct {
	Kind              DecisionKind
	Conditions        []string
	ReviewRequirements []string
	DenialReason      string
}

// Rationale summarizes why the decision came out as it did.
type Rationale struct {
	Summary     string
	RuleRefs    []string
	FailedStage string // set only when a stage errored outright
}

// RiskFactor is one contributor to the overall risk assessment.
type RiskFactor struct {
	Name     string
	Severity RiskClass
}

// RiskAssessment is stage 7's output.
type RiskAssessment struct {
	Overall     RiskClass
	Factors     []RiskFactor
	Mitigations []string
}

// StageName identifies one of the seven fixed pipeline stages.
type StageName string

const (
	StageIdentity     StageName = "identity"
	StageRateLimit    StageName = "rate_limit"
	StageCapability   StageName = "capability"
	StageScope        StageName = "scope"
	StagePolicy       StageName = "policy"
	StageSafety       StageName = "safety"
	StageRisk         StageName = "risk"
)

// StageResult is one stage's outcome, always recorded even when the
// pipeline short-circuits before reaching that stage.
type StageResult struct {
	Name     StageName
	Ran      bool
	Passed   bool
	Detail   string
	Duration time.Duration
}

// DecisionCard is the Gate's immutable, fixed-shape output.
type DecisionCard struct {
	DecisionID      string
	Declaration     Declaration
	Decision        Decision
	Rationale       Rationale
	Risk            RiskAssessment
	Stages          []StageResult
	EvaluationTime  time.Duration
	ObservationEnds time.Time // zero if no observation window applies
}
