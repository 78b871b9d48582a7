package capability

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// policyFile and ruleFile mirror the YAML representation of a policy
// catalog entry. Field names match the document format so a deployment
// can author its catalog as plain YAML rather than recompiling Go code.
type policyFile struct {
	ID       string    `yaml:"id"`
	Name     string    `yaml:"name"`
	Priority int       `yaml:"priority"`
	Enabled  *bool     `yaml:"enabled"`
	Rules    []ruleFile `yaml:"rules"`
}

type ruleFile struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Condition   string `yaml:"condition"`
	Action      string `yaml:"action"`
}

// LoadPolicies reads a policy catalog from the YAML file at path. A
// missing file is not an error: callers fall back to a default
// in-process policy set (see cmd/kernel's defaultPolicies), matching
// config.Load's own create-if-missing posture for the kernel's other
// settings. defaultEnable supplies the Enabled value for any entry that
// omits the `enabled` key, mirroring the kernel config's
// PolicyDefaultEnable option.
func LoadPolicies(path string, defaultEnable bool) ([]Policy, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("capability: open policy file: %w", err)
	}

	var entries []policyFile
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("capability: decode policy file: %w", err)
	}

	seen := make(map[string]struct{}, len(entries))
	policies := make([]Policy, 0, len(entries))
	for _, entry := range entries {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			return nil, fmt.Errorf("capability: policy entry missing id")
		}
		if _, exists := seen[id]; exists {
			return nil, fmt.Errorf("capability: duplicate policy id %q", id)
		}
		seen[id] = struct{}{}

		enabled := defaultEnable
		if entry.Enabled != nil {
			enabled = *entry.Enabled
		}

		rules := make([]Rule, 0, len(entry.Rules))
		for _, r := range entry.Rules {
			cond, err := parseCondition(r.Condition)
			if err != nil {
				return nil, fmt.Errorf("capability: policy %q rule %q: %w", id, r.ID, err)
			}
			action, err := parseAction(r.Action)
			if err != nil {
				return nil, fmt.Errorf("capability: policy %q rule %q: %w", id, r.ID, err)
			}
			rules = append(rules, Rule{ID: r.ID, Description: r.Description, Condition: cond, Action: action})
		}

		policies = append(policies, Policy{
			ID:       id,
			Name:     entry.Name,
			Priority: entry.Priority,
			Enabled:  enabled,
			Rules:    rules,
		})
	}

	sort.SliceStable(policies, func(i, j int) bool { return policies[i].Priority > policies[j].Priority })
	return policies, nil
}

func parseCondition(raw string) (RuleCondition, error) {
	trimmed := strings.TrimSpace(raw)
	switch RuleCondition(trimmed) {
	case CondAlways, CondNever, CondDomainIsCritical, CondScopeIsGlobal, CondIsIrreversible:
		return RuleCondition(trimmed), nil
	}
	if strings.HasPrefix(trimmed, string(CondCustomPrefix)) {
		return RuleCondition(trimmed), nil
	}
	return "", fmt.Errorf("unrecognized condition %q", raw)
}

func parseAction(raw string) (Action, error) {
	trimmed := strings.TrimSpace(raw)
	switch Action(trimmed) {
	case ActionAllow, ActionDeny, ActionRequireHumanApproval, ActionRequireAdditionalInfo, ActionAddCondition:
		return Action(trimmed), nil
	}
	return "", fmt.Errorf("unrecognized action %q", raw)
}
