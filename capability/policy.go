package capability

import "sort"

// Action is what a triggered rule contributes to the effective
// decision for a declaration.
type Action string

const (
	ActionAllow                Action = "allow"
	ActionDeny                 Action = "deny"
	ActionRequireHumanApproval Action = "require_human_approval"
	ActionRequireAdditionalInfo Action = "require_additional_info"
	ActionAddCondition         Action = "add_condition"
)

// rank orders actions by strictness, strictest first, implementing the
// monotone lattice: Deny > RequireHumanApproval > RequireAdditionalInfo
// > AddCondition > Allow. Once a stricter action has been reached,
// evaluating a weaker one never relaxes the outcome.
func (a Action) rank() int {
	switch a {
	case ActionDeny:
		return 4
	case ActionRequireHumanApproval:
		return 3
	case ActionRequireAdditionalInfo:
		return 2
	case ActionAddCondition:
		return 1
	case ActionAllow:
		return 0
	default:
		return 0
	}
}

// Stricter reports whether a is at least as strict as other.
func (a Action) Stricter(other Action) bool {
	return a.rank() >= other.rank()
}

// ConditionKey is a tag attached by AddCondition rules (e.g.
// "notify-governance", "canary-required").
type ConditionKey string

// EvalContext describes the declaration being evaluated against a rule.
// It carries just the facts the built-in conditions and the
// registered Custom predicates need; it intentionally exposes a small,
// closed surface rather than the full declaration type so that rule
// evaluation cannot reach into unrelated fields.
type EvalContext struct {
	Domain          Domain
	Scope           Scope
	Irreversible    bool
	Tier            int
	PolicyTags      []string
	RequestedAssets []string
}

// RuleCondition is the predicate a rule evaluates against an
// EvalContext.
type RuleCondition string

const (
	CondAlways             RuleCondition = "always"
	CondNever              RuleCondition = "never"
	CondDomainIsCritical   RuleCondition = "domain_is_critical"
	CondScopeIsGlobal      RuleCondition = "scope_is_global"
	CondIsIrreversible     RuleCondition = "is_irreversible"
	CondCustomPrefix       RuleCondition = "custom:" // "custom:<predicate-name>"
)

// customPredicates is the registered table backing Custom(expression)
// rule conditions. Deliberately a closed, named table rather than a
// general expression evaluator or reflection: an unrecognized name
// evaluates to false rather than panicking.
var customPredicates = map[string]func(EvalContext) bool{
	"has_policy_tag_sensitive": func(ctx EvalContext) bool {
		return hasTag(ctx.PolicyTags, "sensitive")
	},
	"targets_restricted_asset": func(ctx EvalContext) bool {
		return hasTag(ctx.RequestedAssets, "restricted")
	},
	"high_tier": func(ctx EvalContext) bool {
		return ctx.Tier >= 2
	},
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

// RegisterCustomPredicate adds (or overwrites) a named predicate in
// the custom condition table. Intended for use by platform policy
// catalogs loaded at startup, not by the adjudication path itself.
func RegisterCustomPredicate(name string, fn func(EvalContext) bool) {
	customPredicates[name] = fn
}

// evaluateCondition evaluates a single condition. Unknown custom
// predicate names, and any condition this package does not recognize,
// evaluate to false rather than erroring: a malformed or unknown
// policy expression must never escalate to a denial by accident, and
// must never panic the adjudication path.
func evaluateCondition(cond RuleCondition, ctx EvalContext) bool {
	switch cond {
	case CondAlways:
		return true
	case CondNever:
		return false
	case CondDomainIsCritical:
		return ctx.Domain.IsCritical()
	case CondScopeIsGlobal:
		return ctx.Scope.IsGlobal()
	case CondIsIrreversible:
		return ctx.Irreversible
	default:
		if name, ok := customPredicateName(cond); ok {
			if fn, found := customPredicates[name]; found {
				return fn(ctx)
			}
		}
		return false
	}
}

func customPredicateName(cond RuleCondition) (string, bool) {
	s := string(cond)
	prefix := string(CondCustomPrefix)
	if len(s) <= len(prefix) || s[:len(prefix)] != prefix {
		return "", false
	}
	return s[len(prefix):], true
}

// Rule is a single named condition/action pair within a Policy.
type Rule struct {
	ID          string
	Description string
	Condition   RuleCondition
	Action      Action
}

// Policy is a priority-ordered, optionally-disabled bundle of rules.
type Policy struct {
	ID       string
	Name     string
	Priority int
	Enabled  bool
	Rules    []Rule
}

// RuleResult records whether a single rule triggered, for the gate's
// per-stage audit trail.
type RuleResult struct {
	PolicyID  string
	RuleID    string
	Triggered bool
	Action    Action
}

// EvaluationResult is the fold of every enabled policy's triggered
// rules into one effective action, in the monotone lattice order.
type EvaluationResult struct {
	Effective      Action
	AddedConditions []ConditionKey
	Results        []RuleResult
}

// Evaluate runs policies in descending priority order (rules within a
// policy in declaration order) against ctx, and folds every triggered
// rule's action into the strictest overall outcome. Disabled policies
// are skipped entirely.
func Evaluate(policies []Policy, ctx EvalContext) EvaluationResult {
	ordered := append([]Policy(nil), policies...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority > ordered[j].Priority })

	result := EvaluationResult{Effective: ActionAllow}
	for _, policy := range ordered {
		if !policy.Enabled {
			continue
		}
		for _, rule := range policy.Rules {
			triggered := evaluateCondition(rule.Condition, ctx)
			result.Results = append(result.Results, RuleResult{
				PolicyID:  policy.ID,
				RuleID:    rule.ID,
				Triggered: triggered,
				Action:    rule.Action,
			})
			if !triggered {
				continue
			}
			if rule.Action == ActionAddCondition {
				result.AddedConditions = append(result.AddedConditions, ConditionKey(rule.ID))
				if result.Effective.rank() < ActionAddCondition.rank() {
					result.Effective = ActionAddCondition
				}
				continue
			}
			if rule.Action.Stricter(result.Effective) {
				result.Effective = rule.Action
			}
		}
	}
	return result
}
