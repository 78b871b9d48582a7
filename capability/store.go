package capability

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"commitmentkernel/core/identity"
)

// CheckResult is the outcome of Store.Check: either an authorizing
// grant, or a denial reason for the decision card's rationale.
type CheckResult struct {
	Authorized   bool
	MatchedGrant *Grant
	Conditions   []Condition
	DenialReason string
}

// Store is an arena of grants addressed by CapabilityID, indexed by
// grantee and by issuer. Grants are appended once and never removed;
// revocation flips Status in place. This sidesteps the cyclic
// ownership a naive grantee-owns-grant / issuer-owns-grant model would
// otherwise create.
type Store struct {
	mu        sync.RWMutex
	arena     map[CapabilityID]*Grant
	byGrantee map[identity.ID][]CapabilityID
	byIssuer  map[identity.ID][]CapabilityID
	now       func() time.Time
}

// NewStore constructs an empty capability store.
func NewStore() *Store {
	return &Store{
		arena:     make(map[CapabilityID]*Grant),
		byGrantee: make(map[identity.ID][]CapabilityID),
		byIssuer:  make(map[identity.ID][]CapabilityID),
		now:       time.Now,
	}
}

// WithClock overrides the store's time source, for deterministic tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Grant records a new capability grant issued by issuer to grantee.
// The issuer's own authority to issue is the caller's responsibility
// to verify (typically via a prior Check against the issuer's own
// grants) before calling Grant.
func (s *Store) Grant(issuer, grantee identity.ID, domain Domain, scope Scope, validity Validity, conditions ...Condition) (*Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := &Grant{
		ID:         CapabilityID(uuid.New().String()),
		Grantee:    grantee,
		Issuer:     issuer,
		Domain:     domain,
		Scope:      scope,
		Validity:   validity,
		Status:     StatusActive,
		Conditions: append([]Condition(nil), conditions...),
		IssuedAt:   s.now(),
	}
	s.arena[g.ID] = g
	s.byGrantee[grantee] = append(s.byGrantee[grantee], g.ID)
	s.byIssuer[issuer] = append(s.byIssuer[issuer], g.ID)
	return g, nil
}

// ErrGrantNotFound is returned by Revoke when the id is unknown.
var ErrGrantNotFound = fmt.Errorf("capability: grant not found")

// Revoke flips a grant's status to Revoked in place. The grant remains
// indexed and visible to audit queries; it is simply no longer
// returned as authorizing by Check.
func (s *Store) Revoke(id CapabilityID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.arena[id]
	if !ok {
		return ErrGrantNotFound
	}
	g.Status = StatusRevoked
	g.RevokedAt = s.now()
	g.RevokedWhy = reason
	return nil
}

// Get returns the grant with the given id, including revoked or
// expired ones, for audit inspection.
func (s *Store) Get(id CapabilityID) (*Grant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.arena[id]
	return g, ok
}

// ForGrantee returns every grant ever issued to identity, active or
// not, in issuance order.
func (s *Store) ForGrantee(id identity.ID) []*Grant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byGrantee[id]
	out := make([]*Grant, 0, len(ids))
	for _, cid := range ids {
		out = append(out, s.arena[cid])
	}
	return out
}

// Check implements the fixed six-step grant check: skip non-active,
// skip out-of-validity, skip domain mismatch, skip scope mismatch,
// return the first covering grant found in issuance order, or deny
// with a reason if none covers the request.
func (s *Store) Check(id identity.ID, domain Domain, scope Scope) CheckResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	sawAny := false
	for _, cid := range s.byGrantee[id] {
		g := s.arena[cid]

		if g.Status != StatusActive {
			continue
		}
		if !g.Validity.Includes(now) {
			continue
		}
		sawAny = true
		if !g.Domain.Matches(domain) {
			continue
		}
		if !g.Scope.Covers(scope) {
			continue
		}
		return CheckResult{Authorized: true, MatchedGrant: g, Conditions: g.Conditions}
	}

	if !sawAny {
		return CheckResult{DenialReason: "no active grant found for identity"}
	}
	return CheckResult{DenialReason: fmt.Sprintf("no active grant covers domain %q and requested scope", domain)}
}

// SweepExpired flips every Active grant whose Validity window has
// lapsed as of now to Expired and returns how many it flipped. It is
// for callers (e.g. periodic housekeeping) that want the Expired status
// recorded explicitly rather than relying on EffectiveAt's implicit
// time check. Check itself never mutates state.
func (s *Store) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, g := range s.arena {
		if g.Status == StatusActive && !g.Validity.End.IsZero() && now.After(g.Validity.End) {
			g.Status = StatusExpired
			n++
		}
	}
	return n
}
