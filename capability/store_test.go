package capability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"commitmentkernel/core/identity"
)

func mustID(t *testing.T, seed byte) identity.ID {
	t.Helper()
	id, err := identity.Derive(identity.PublicKeyMaterial{Scheme: "ed25519", Key: []byte{seed}})
	require.NoError(t, err)
	return id
}

func TestCheckAuthorizesGlobalGrant(t *testing.T) {
	s := NewStore()
	grantee := mustID(t, 1)
	issuer := mustID(t, 2)

	_, err := s.Grant(issuer, grantee, DomainFinance, Scope{Targets: []string{"*"}, Operations: []string{"*"}}, Validity{Start: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	result := s.Check(grantee, DomainFinance, Scope{Targets: []string{"acct:123"}, Operations: []string{"transfer"}})
	require.True(t, result.Authorized)
	require.NotNil(t, result.MatchedGrant)
}

func TestCheckRejectsRevokedGrant(t *testing.T) {
	s := NewStore()
	grantee := mustID(t, 1)
	issuer := mustID(t, 2)

	grant, err := s.Grant(issuer, grantee, DomainFinance, Scope{Targets: []string{"*"}, Operations: []string{"*"}}, Validity{Start: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	require.NoError(t, s.Revoke(grant.ID, "compromised key"))

	result := s.Check(grantee, DomainFinance, Scope{Targets: []string{"acct:1"}, Operations: []string{"transfer"}})
	require.False(t, result.Authorized)

	found, ok := s.Get(grant.ID)
	require.True(t, ok, "revoked grants must remain indexed for audit")
	require.Equal(t, StatusRevoked, found.Status)
}

func TestCheckRejectsExpiredValidity(t *testing.T) {
	s := NewStore()
	grantee := mustID(t, 1)
	issuer := mustID(t, 2)

	past := time.Now().Add(-2 * time.Hour)
	expiry := time.Now().Add(-time.Hour)
	_, err := s.Grant(issuer, grantee, DomainFinance, Scope{Targets: []string{"*"}, Operations: []string{"*"}}, Validity{Start: past, End: expiry})
	require.NoError(t, err)

	result := s.Check(grantee, DomainFinance, Scope{Targets: []string{"acct:1"}, Operations: []string{"transfer"}})
	require.False(t, result.Authorized)
}

func TestCheckRejectsDomainMismatch(t *testing.T) {
	s := NewStore()
	grantee := mustID(t, 1)
	issuer := mustID(t, 2)

	_, err := s.Grant(issuer, grantee, DomainCommunication, Scope{Targets: []string{"*"}, Operations: []string{"*"}}, Validity{Start: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	result := s.Check(grantee, DomainFinance, Scope{Targets: []string{"acct:1"}, Operations: []string{"transfer"}})
	require.False(t, result.Authorized)
}

func TestCheckRejectsScopeMismatch(t *testing.T) {
	s := NewStore()
	grantee := mustID(t, 1)
	issuer := mustID(t, 2)

	_, err := s.Grant(issuer, grantee, DomainFinance, Scope{Targets: []string{"acct:1"}, Operations: []string{"read"}}, Validity{Start: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	result := s.Check(grantee, DomainFinance, Scope{Targets: []string{"acct:2"}, Operations: []string{"read"}})
	require.False(t, result.Authorized)
}

func TestCheckHonorsSuffixWildcard(t *testing.T) {
	s := NewStore()
	grantee := mustID(t, 1)
	issuer := mustID(t, 2)

	_, err := s.Grant(issuer, grantee, DomainFinance, Scope{Targets: []string{"acct:*"}, Operations: []string{"transfer"}}, Validity{Start: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	result := s.Check(grantee, DomainFinance, Scope{Targets: []string{"acct:987"}, Operations: []string{"transfer"}})
	require.True(t, result.Authorized)
}

func TestDomainHierarchicalContainment(t *testing.T) {
	s := NewStore()
	grantee := mustID(t, 1)
	issuer := mustID(t, 2)

	_, err := s.Grant(issuer, grantee, DomainFinance, Scope{Targets: []string{"*"}, Operations: []string{"*"}}, Validity{Start: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	result := s.Check(grantee, Domain("finance.transfer.settlement"), Scope{Targets: []string{"acct:1"}, Operations: []string{"settle"}})
	require.True(t, result.Authorized, "a parent-domain grant must cover child domains")
}

func TestSweepExpiredFlipsStatus(t *testing.T) {
	s := NewStore()
	grantee := mustID(t, 1)
	issuer := mustID(t, 2)

	past := time.Now().Add(-2 * time.Hour)
	expiry := time.Now().Add(-time.Minute)
	grant, err := s.Grant(issuer, grantee, DomainFinance, Scope{Targets: []string{"*"}, Operations: []string{"*"}}, Validity{Start: past, End: expiry})
	require.NoError(t, err)

	n := s.SweepExpired()
	require.Equal(t, 1, n)

	found, _ := s.Get(grant.ID)
	require.Equal(t, StatusExpired, found.Status)
}
