// Package ledger implements the hash-chained audit ledger and the
// state projection engine that folds it into observable quantities.
// The ledger is the sole source of truth: balances, budgets, and
// capability sets are never stored as mutable fields, only computed by
// replaying a ledger prefix.
package ledger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"lukechampine.com/blake3"
)

// Kind classifies a ledger entry.
type Kind uint8

const (
	KindCommitment Kind = iota
	KindAudit
	KindOutcome
)

func (k Kind) String() string {
	switch k {
	case KindCommitment:
		return "commitment"
	case KindAudit:
		return "audit"
	case KindOutcome:
		return "outcome"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Payload is a typed entry body. The ledger supports a fixed, closed
// set of payload kinds; see payload.go for the concrete types.
type Payload interface {
	Kind() string
}

// Entry is a single, immutable record in the hash chain.
type Entry struct {
	Index        uint64
	TraceID      string
	EntryKind    Kind
	CommitmentID string // optional, empty when not commitment-scoped
	Timestamp    time.Time
	Payload      Payload
	PreviousHash [32]byte
	HasPrevious  bool // false only for the first entry
	EntryHash    [32]byte
}

const hashDomainTag = "commitment-kernel-ledger-v1"

func canonicalPayloadBytes(p Payload) ([]byte, error) {
	envelope := struct {
		Kind string          `json:"kind"`
		Data json.RawMessage `json:"data"`
	}{Kind: p.Kind()}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("ledger: marshal payload: %w", err)
	}
	envelope.Data = data

	out, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("ledger: marshal payload envelope: %w", err)
	}
	return out, nil
}

// computeEntryHash hashes (index, trace id, kind, commitment id,
// timestamp, canonical payload bytes, previous hash), matching the
// fields named by the entry-hash contract.
func computeEntryHash(e *Entry) ([32]byte, error) {
	payloadBytes, err := canonicalPayloadBytes(e.Payload)
	if err != nil {
		return [32]byte{}, err
	}

	h := blake3.New(32, nil)
	h.Write([]byte(hashDomainTag))
	h.Write([]byte{0})

	var idxBuf [8]byte
	binary.LittleEndian.PutUint64(idxBuf[:], e.Index)
	h.Write(idxBuf[:])

	h.Write([]byte(e.TraceID))
	h.Write([]byte{0})
	h.Write([]byte{byte(e.EntryKind)})
	h.Write([]byte(e.CommitmentID))
	h.Write([]byte{0})

	var tsBuf [8]byte
	binary.LittleEndian.PutUint64(tsBuf[:], uint64(e.Timestamp.UnixNano()))
	h.Write(tsBuf[:])

	h.Write(payloadBytes)

	if e.HasPrevious {
		h.Write(e.PreviousHash[:])
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// Verify recomputes e's entry hash and reports whether it still
// matches the hash stored on the entry.
func Verify(e *Entry) bool {
	if e == nil {
		return false
	}
	want, err := computeEntryHash(e)
	if err != nil {
		return false
	}
	return want == e.EntryHash
}
