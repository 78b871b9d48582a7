package fabric

// CommitmentDeclaredPayload records that an agent proposed a commitment.
type CommitmentDeclaredPayload struct {
	DeclarationID string `json:"declaration_id"`
	Domain        string `json:"domain"`
	Scope         string `json:"scope"`
	Reversible    bool   `json:"reversible"`
	Tier          int    `json:"tier"`
}

func (CommitmentDeclaredPayload) Kind() string { return "commitment.declared" }

// CommitmentApprovedPayload records a Gate decision that allows a
// commitment to proceed, with or without attached conditions.
type CommitmentApprovedPayload struct {
	DecisionID     string `json:"decision_id"`
	CommitmentID   string `json:"commitment_id"`
	Decision       string `json:"decision"`
	ConditionCount int    `json:"condition_count"`
}

func (CommitmentApprovedPayload) Kind() string { return "commitment.approved" }

// CommitmentDeniedPayload records a Gate decision that refuses a
// commitment.
type CommitmentDeniedPayload struct {
	DecisionID   string `json:"decision_id"`
	CommitmentID string `json:"commitment_id"`
	Reason       string `json:"reason"`
}

func (CommitmentDeniedPayload) Kind() string { return "commitment.denied" }

// ConsequenceObservedPayload records the outcome an agent reports for
// a previously approved commitment.
type ConsequenceObservedPayload struct {
	CommitmentID string `json:"commitment_id"`
	Outcome      string `json:"outcome"`
	Detail       string `json:"detail"`
}

func (ConsequenceObservedPayload) Kind() string { return "consequence.observed" }

// CapabilityGrantedPayload records the creation of a capability grant.
type CapabilityGrantedPayload struct {
	CapabilityID string `json:"capability_id"`
	Grantee      string `json:"grantee"`
	Domain       string `json:"domain"`
}

func (CapabilityGrantedPayload) Kind() string { return "capability.granted" }

// CapabilityRevokedPayload records a capability grant being revoked.
type CapabilityRevokedPayload struct {
	CapabilityID string `json:"capability_id"`
	Reason       string `json:"reason"`
}

func (CapabilityRevokedPayload) Kind() string { return "capability.revoked" }

// PolicyEvaluatedPayload records the outcome of a policy evaluation
// during adjudication.
type PolicyEvaluatedPayload struct {
	PolicyID string `json:"policy_id"`
	Decision string `json:"decision"`
}

func (PolicyEvaluatedPayload) Kind() string { return "policy.evaluated" }

// CheckpointPayload marks a fabric retention checkpoint: every event
// at or before UpToIndex is eligible for pruning.
type CheckpointPayload struct {
	UpToIndex uint64 `json:"up_to_index"`
}

func (CheckpointPayload) Kind() string { return "system.checkpoint" }
