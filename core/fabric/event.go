// Package fabric implements the event fabric: an append-only,
// hash-verified log of typed events spanning the platform's eight
// resonance stages. Every event's integrity hash covers its identity,
// timestamp, producer, stage, payload, and parentage, so any later
// mutation of a stored event is detectable.
package fabric

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"lukechampine.com/blake3"

	"commitmentkernel/core/clock"
	"commitmentkernel/core/identity"
)

// Stage is one of the eight fixed resonance stages an event belongs
// to, in increasing order of how far the system has committed to the
// event's consequences.
type Stage uint8

const (
	StagePresence Stage = iota
	StageCoupling
	StageMeaning
	StageIntent
	StageCommitment
	StageConsequence
	StageGovernance
	StageSystem
)

func (s Stage) String() string {
	switch s {
	case StagePresence:
		return "presence"
	case StageCoupling:
		return "coupling"
	case StageMeaning:
		return "meaning"
	case StageIntent:
		return "intent"
	case StageCommitment:
		return "commitment"
	case StageConsequence:
		return "consequence"
	case StageGovernance:
		return "governance"
	case StageSystem:
		return "system"
	default:
		return fmt.Sprintf("stage(%d)", uint8(s))
	}
}

// Payload is a typed event body. The fabric supports a fixed, closed
// set of payload kinds; see payload.go for the concrete types.
type Payload interface {
	Kind() string
}

// Event is a single, immutable record in the fabric.
type Event struct {
	ID            uuid.UUID
	Timestamp     clock.Timestamp
	Producer      identity.ID
	Stage         Stage
	Payload       Payload
	Parents       []uuid.UUID
	IntegrityHash [32]byte
}

const hashDomainTag = "commitment-kernel-event-v1"

func canonicalPayloadBytes(p Payload) ([]byte, error) {
	envelope := struct {
		Kind string          `json:"kind"`
		Data json.RawMessage `json:"data"`
	}{Kind: p.Kind()}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("fabric: marshal payload: %w", err)
	}
	envelope.Data = data

	out, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("fabric: marshal payload envelope: %w", err)
	}
	return out, nil
}

func computeIntegrityHash(e *Event) ([32]byte, error) {
	payloadBytes, err := canonicalPayloadBytes(e.Payload)
	if err != nil {
		return [32]byte{}, err
	}

	h := blake3.New(32, nil)
	h.Write([]byte(hashDomainTag))
	h.Write([]byte{0})
	h.Write(e.ID[:])

	var hlc [14]byte
	binary.LittleEndian.PutUint64(hlc[0:8], e.Timestamp.Physical)
	binary.LittleEndian.PutUint32(hlc[8:12], e.Timestamp.Logical)
	binary.LittleEndian.PutUint16(hlc[12:14], uint16(e.Timestamp.NodeID))
	h.Write(hlc[:])

	h.Write(e.Producer[:])
	h.Write([]byte{byte(e.Stage)})
	h.Write(payloadBytes)

	var parentCount [4]byte
	binary.LittleEndian.PutUint32(parentCount[:], uint32(len(e.Parents)))
	h.Write(parentCount[:])
	for _, parent := range e.Parents {
		h.Write(parent[:])
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// Verify recomputes e's integrity hash and reports whether it still
// matches the hash stored on the event.
func Verify(e *Event) bool {
	if e == nil {
		return false
	}
	want, err := computeIntegrityHash(e)
	if err != nil {
		return false
	}
	return want == e.IntegrityHash
}
