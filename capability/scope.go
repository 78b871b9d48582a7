package capability

import "strings"

// globalPattern is the wildcard that matches any target or operation.
const globalPattern = "*"

// Scope is a target/operation constraint attached to a grant or
// declared by a commitment. A scope whose Targets or Operations
// contains exactly "*" is global for that axis.
type Scope struct {
	Targets    []string
	Operations []string
}

// IsGlobal reports whether the scope is unconstrained on both axes —
// the "global scope" the safety invariants force through human review.
func (s Scope) IsGlobal() bool {
	return containsPattern(s.Targets, globalPattern) && containsPattern(s.Operations, globalPattern)
}

func containsPattern(patterns []string, want string) bool {
	for _, p := range patterns {
		if p == want {
			return true
		}
	}
	return false
}

// matchPattern reports whether value is matched by pattern: exact
// equality, the global wildcard "*", or a suffix wildcard "prefix*".
func matchPattern(pattern, value string) bool {
	if pattern == globalPattern {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(value, prefix)
	}
	return pattern == value
}

// Covers reports whether the granted scope g covers the requested
// scope req: a global granted scope covers anything; otherwise every
// requested target must be matched by some granted target pattern and
// every requested operation by some granted operation pattern.
func (g Scope) Covers(req Scope) bool {
	if g.IsGlobal() {
		return true
	}
	for _, target := range req.Targets {
		if !matchesAny(g.Targets, target) {
			return false
		}
	}
	for _, op := range req.Operations {
		if !matchesAny(g.Operations, op) {
			return false
		}
	}
	return true
}

func matchesAny(patterns []string, value string) bool {
	for _, p := range patterns {
		if matchPattern(p, value) {
			return true
		}
	}
	return false
}
