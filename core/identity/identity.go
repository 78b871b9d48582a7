// Package identity derives stable, content-addressed identifiers for
// agents and worldlines from their founding material, and verifies that
// a claimed identifier still matches that material.
package identity

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"lukechampine.com/blake3"
)

// ID is a 32-byte content-derived identifier. Two identities are equal
// only if they were derived from identical material.
type ID [32]byte

// String renders the identifier as lowercase hex.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id has never been assigned.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Material is the founding evidence an identity is derived from. Each
// implementation hashes under its own domain-separation tag so that no
// two material kinds can collide on the same digest by construction.
type Material interface {
	domainTag() string
	encode() []byte
}

// PublicKeyMaterial derives an identity from a public key's raw bytes
// (Ed25519, secp256k1, or any other fixed-length key encoding).
type PublicKeyMaterial struct {
	Scheme string
	Key    []byte
}

func (m PublicKeyMaterial) domainTag() string { return "commitment-kernel-identity-v1:pubkey" }

func (m PublicKeyMaterial) encode() []byte {
	buf := make([]byte, 0, len(m.Scheme)+1+len(m.Key))
	buf = append(buf, []byte(m.Scheme)...)
	buf = append(buf, 0)
	buf = append(buf, m.Key...)
	return buf
}

// OrganizationalMaterial derives an identity for a non-keyed organizational
// actor, scoped by a salt so that two organizations sharing an OrgID (e.g.
// across environments) never collide.
type OrganizationalMaterial struct {
	OrgID string
	Salt  [16]byte
}

func (m OrganizationalMaterial) domainTag() string {
	return "commitment-kernel-identity-v1:organizational"
}

func (m OrganizationalMaterial) encode() []byte {
	buf := make([]byte, 0, len(m.OrgID)+1+len(m.Salt))
	buf = append(buf, []byte(m.OrgID)...)
	buf = append(buf, 0)
	buf = append(buf, m.Salt[:]...)
	return buf
}

// GenesisMaterial derives an identity from the hash of a worldline's
// founding (genesis) event, binding the identity to its causal origin.
type GenesisMaterial struct {
	GenesisHash [32]byte
}

func (m GenesisMaterial) domainTag() string { return "commitment-kernel-identity-v1:genesis" }

func (m GenesisMaterial) encode() []byte {
	out := make([]byte, 32)
	copy(out, m.GenesisHash[:])
	return out
}

// CompositeMaterial derives an identity from an ordered set of other
// materials, each still hashed under its own domain tag before being
// folded into the composite.
type CompositeMaterial struct {
	Members []Material
}

func (m CompositeMaterial) domainTag() string { return "commitment-kernel-identity-v1:composite" }

func (m CompositeMaterial) encode() []byte {
	buf := make([]byte, 0, 32*len(m.Members))
	for _, member := range m.Members {
		sum := digest(member)
		buf = append(buf, sum[:]...)
	}
	return buf
}

// Derive computes the content-addressed identifier for the given
// material. Derivation is deterministic: the same material always
// yields the same ID.
func Derive(material Material) (ID, error) {
	if material == nil {
		return ID{}, errors.New("identity: material must not be nil")
	}
	return digest(material), nil
}

// Verify reports whether id is the correct derivation of material,
// using a constant-time comparison so identity checks cannot leak
// timing information about partial matches.
func Verify(id ID, material Material) bool {
	if material == nil {
		return false
	}
	want := digest(material)
	return subtle.ConstantTimeCompare(id[:], want[:]) == 1
}

func digest(material Material) ID {
	h := blake3.New(32, nil)
	h.Write([]byte(material.domainTag()))
	h.Write([]byte{0})
	h.Write(material.encode())
	var out ID
	copy(out[:], h.Sum(nil))
	return out
}

// ParseID parses a hex-encoded identifier produced by ID.String.
func ParseID(s string) (ID, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, fmt.Errorf("identity: invalid id encoding: %w", err)
	}
	if len(raw) != 32 {
		return ID{}, fmt.Errorf("identity: invalid id length %d, want 32", len(raw))
	}
	var out ID
	copy(out[:], raw)
	return out, nil
}
