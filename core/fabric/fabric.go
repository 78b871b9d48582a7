package fabric

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"commitmentkernel/core/clock"
	"commitmentkernel/core/identity"
)

// ErrUnknownParent is returned by Emit when a declared parent event is
// not present in the fabric.
var ErrUnknownParent = errors.New("fabric: unknown parent event")

// Fabric is an in-memory, hash-verified event log. It is safe for
// concurrent use by many producers; reads never block other reads.
type Fabric struct {
	mu         sync.RWMutex
	clock      *clock.Clock
	events     map[uuid.UUID]*Event
	order      []uuid.UUID
	checkpoint int // index into order below which pruning is permitted
}

// New constructs a Fabric driven by the given causal clock.
func New(c *clock.Clock) *Fabric {
	return &Fabric{
		clock:  c,
		events: make(map[uuid.UUID]*Event),
	}
}

// Emit timestamps, hashes, and stores a new event. Every id in parents
// must already exist in the fabric.
func (f *Fabric) Emit(producer identity.ID, stage Stage, payload Payload, parents []uuid.UUID) (*Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, parent := range parents {
		if _, ok := f.events[parent]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownParent, parent)
		}
	}

	parentsCopy := append([]uuid.UUID(nil), parents...)
	event := &Event{
		ID:        uuid.New(),
		Timestamp: f.clock.Now(),
		Producer:  producer,
		Stage:     stage,
		Payload:   payload,
		Parents:   parentsCopy,
	}

	hash, err := computeIntegrityHash(event)
	if err != nil {
		return nil, err
	}
	event.IntegrityHash = hash

	f.events[event.ID] = event
	f.order = append(f.order, event.ID)
	return event, nil
}

// Get returns the event with the given id, if present.
func (f *Fabric) Get(id uuid.UUID) (*Event, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.events[id]
	return e, ok
}

// Len reports how many events are currently held in the fabric.
func (f *Fabric) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.order)
}

// Report summarizes the result of VerifyAll.
type Report struct {
	Total    int
	Clean    int
	Tampered []uuid.UUID
}

// VerifyAll recomputes every event's integrity hash and reports which,
// if any, no longer match.
func (f *Fabric) VerifyAll() Report {
	f.mu.RLock()
	defer f.mu.RUnlock()

	report := Report{Total: len(f.order)}
	for _, id := range f.order {
		e := f.events[id]
		if Verify(e) {
			report.Clean++
		} else {
			report.Tampered = append(report.Tampered, id)
		}
	}
	return report
}

// Checkpoint marks every event emitted at or before upTo as eligible
// for future pruning. It is a no-op if upTo is unknown to the fabric.
func (f *Fabric) Checkpoint(upTo uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, id := range f.order {
		if id == upTo {
			f.checkpoint = i + 1
			return
		}
	}
}

// Prune discards events older than retention that are also at or
// before the current checkpoint. It returns the number of events
// removed. Events newer than the checkpoint are never discarded, even
// if they are older than retention, since they have not yet been
// acknowledged as safe to forget.
func (f *Fabric) Prune(retention time.Duration, now time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoffMillis := uint64(now.Add(-retention).UnixMilli())
	removed := 0
	keepFrom := 0

	for i := 0; i < f.checkpoint && i < len(f.order); i++ {
		id := f.order[i]
		e := f.events[id]
		if e.Timestamp.Physical <= cutoffMillis {
			delete(f.events, id)
			removed++
			keepFrom = i + 1
		} else {
			break
		}
	}

	if removed > 0 {
		f.order = append([]uuid.UUID(nil), f.order[keepFrom:]...)
		f.checkpoint -= keepFrom
		if f.checkpoint < 0 {
			f.checkpoint = 0
		}
	}
	return removed
}
