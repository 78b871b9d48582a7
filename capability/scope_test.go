package capability

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopeCoversExact(t *testing.T) {
	g := Scope{Targets: []string{"acct:1"}, Operations: []string{"read"}}
	require.True(t, g.Covers(Scope{Targets: []string{"acct:1"}, Operations: []string{"read"}}))
	require.False(t, g.Covers(Scope{Targets: []string{"acct:2"}, Operations: []string{"read"}}))
}

func TestScopeCoversSuffixWildcard(t *testing.T) {
	g := Scope{Targets: []string{"acct:*"}, Operations: []string{"*"}}
	require.True(t, g.Covers(Scope{Targets: []string{"acct:999"}, Operations: []string{"transfer"}}))
	require.False(t, g.Covers(Scope{Targets: []string{"other:1"}, Operations: []string{"transfer"}}))
}

func TestScopeGlobalCoversEverything(t *testing.T) {
	g := Scope{Targets: []string{"*"}, Operations: []string{"*"}}
	require.True(t, g.IsGlobal())
	require.True(t, g.Covers(Scope{Targets: []string{"anything"}, Operations: []string{"anything"}}))
}

func TestScopeRequiresAllTargetsCovered(t *testing.T) {
	g := Scope{Targets: []string{"acct:1"}, Operations: []string{"*"}}
	require.False(t, g.Covers(Scope{Targets: []string{"acct:1", "acct:2"}, Operations: []string{"read"}}))
}

func TestDomainMatchesHierarchy(t *testing.T) {
	require.True(t, DomainFinance.Matches(Domain("finance.transfer")))
	require.True(t, DomainFinance.Matches(DomainFinance))
	require.False(t, DomainFinance.Matches(DomainData))
}
