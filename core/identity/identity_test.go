package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveIsDeterministic(t *testing.T) {
	material := PublicKeyMaterial{Scheme: "ed25519", Key: []byte{1, 2, 3, 4}}

	a, err := Derive(material)
	require.NoError(t, err)
	b, err := Derive(material)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestDeriveDistinguishesMaterialKinds(t *testing.T) {
	pub := PublicKeyMaterial{Scheme: "ed25519", Key: []byte{1, 2, 3, 4}}
	org := OrganizationalMaterial{OrgID: string([]byte{1, 2, 3, 4}), Salt: [16]byte{}}

	pubID, err := Derive(pub)
	require.NoError(t, err)
	orgID, err := Derive(org)
	require.NoError(t, err)
	require.NotEqual(t, pubID, orgID, "different material kinds must never collide even with similar bytes")
}

func TestDeriveDistinguishesDistinctMaterial(t *testing.T) {
	a, err := Derive(PublicKeyMaterial{Scheme: "ed25519", Key: []byte{1}})
	require.NoError(t, err)
	b, err := Derive(PublicKeyMaterial{Scheme: "ed25519", Key: []byte{2}})
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestVerifyAcceptsMatchingMaterial(t *testing.T) {
	material := GenesisMaterial{GenesisHash: [32]byte{9, 9, 9}}
	id, err := Derive(material)
	require.NoError(t, err)
	require.True(t, Verify(id, material))
}

func TestVerifyRejectsTamperedID(t *testing.T) {
	material := GenesisMaterial{GenesisHash: [32]byte{9, 9, 9}}
	id, err := Derive(material)
	require.NoError(t, err)
	id[0] ^= 0xFF
	require.False(t, Verify(id, material))
}

func TestCompositeMaterialOrderMatters(t *testing.T) {
	a := PublicKeyMaterial{Scheme: "ed25519", Key: []byte{1}}
	b := PublicKeyMaterial{Scheme: "ed25519", Key: []byte{2}}

	forward, err := Derive(CompositeMaterial{Members: []Material{a, b}})
	require.NoError(t, err)
	reverse, err := Derive(CompositeMaterial{Members: []Material{b, a}})
	require.NoError(t, err)
	require.NotEqual(t, forward, reverse)
}

func TestDeriveNilMaterialErrors(t *testing.T) {
	_, err := Derive(nil)
	require.Error(t, err)
}

func TestParseIDRoundTrip(t *testing.T) {
	material := PublicKeyMaterial{Scheme: "ed25519", Key: []byte{1, 2, 3}}
	id, err := Derive(material)
	require.NoError(t, err)

	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestParseIDRejectsBadLength(t *testing.T) {
	_, err := ParseID("abcd")
	require.Error(t, err)
}
