// Package clock implements a hybrid logical clock: a causal clock that
// combines wall-clock time with a logical counter so that events
// produced anywhere in the system can be totally ordered even when
// wall clocks disagree slightly between producers.
package clock

import (
	"fmt"
	"sync/atomic"
	"time"
)

// NodeID distinguishes clocks running on different producers so that
// concurrent timestamps with identical physical/logical components
// still resolve to a total order.
type NodeID uint16

// Timestamp is a single hybrid-logical-clock reading. Timestamps are
// totally ordered lexicographically on (Physical, Logical, NodeID).
type Timestamp struct {
	Physical uint64
	Logical  uint32
	NodeID   NodeID
}

// Compare returns -1, 0, or 1 as t is less than, equal to, or greater
// than other.
func (t Timestamp) Compare(other Timestamp) int {
	if t.Physical != other.Physical {
		if t.Physical < other.Physical {
			return -1
		}
		return 1
	}
	if t.Logical != other.Logical {
		if t.Logical < other.Logical {
			return -1
		}
		return 1
	}
	switch {
	case t.NodeID < other.NodeID:
		return -1
	case t.NodeID > other.NodeID:
		return 1
	default:
		return 0
	}
}

// Before reports whether t causally precedes other.
func (t Timestamp) Before(other Timestamp) bool {
	return t.Compare(other) < 0
}

// String renders the timestamp as "physical:logical:node_id".
func (t Timestamp) String() string {
	return fmt.Sprintf("%d:%d:%d", t.Physical, t.Logical, t.NodeID)
}

// DriftError is returned by Receive when a remote timestamp's physical
// component is further ahead of the local wall clock than the
// configured tolerance allows.
type DriftError struct {
	DriftMillis uint64
	MaxMillis   uint64
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("clock: remote drift %dms exceeds maximum %dms", e.DriftMillis, e.MaxMillis)
}

const defaultMaxDriftMillis = 1000

type state struct {
	physical uint64
	logical  uint32
}

// Clock is a single hybrid logical clock instance bound to one node.
// All operations are safe for concurrent use and lock-free: a single
// compare-and-swap loop over an immutable state snapshot.
type Clock struct {
	current     atomic.Pointer[state]
	nodeID      NodeID
	maxDriftMS  uint64
	wallClockFn func() time.Time
}

// Option configures a Clock constructed by New.
type Option func(*Clock)

// WithMaxDrift overrides the default 1000ms drift tolerance applied by
// Receive.
func WithMaxDrift(maxMillis uint64) Option {
	return func(c *Clock) { c.maxDriftMS = maxMillis }
}

// WithWallClock overrides the wall-clock source, primarily for testing.
func WithWallClock(fn func() time.Time) Option {
	return func(c *Clock) { c.wallClockFn = fn }
}

// New constructs a Clock for the given node.
func New(nodeID NodeID, opts ...Option) *Clock {
	c := &Clock{
		nodeID:      nodeID,
		maxDriftMS:  defaultMaxDriftMillis,
		wallClockFn: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.current.Store(&state{})
	return c
}

func (c *Clock) wallMillis() uint64 {
	return uint64(c.wallClockFn().UnixMilli())
}

// Now advances the clock and returns a fresh, strictly-increasing-per-
// caller timestamp.
func (c *Clock) Now() Timestamp {
	for {
		old := c.current.Load()
		wall := c.wallMillis()

		var next state
		if wall > old.physical {
			next = state{physical: wall, logical: 0}
		} else {
			next = state{physical: old.physical, logical: old.logical + 1}
		}

		if c.current.CompareAndSwap(old, &next) {
			return Timestamp{Physical: next.physical, Logical: next.logical, NodeID: c.nodeID}
		}
	}
}

// Receive merges a remote timestamp into the local clock, advancing it
// at least past the remote reading. It rejects remote timestamps whose
// physical component is unreasonably far ahead of the local wall clock.
func (c *Clock) Receive(remote Timestamp) (Timestamp, error) {
	for {
		old := c.current.Load()
		wall := c.wallMillis()

		if remote.Physical > wall+c.maxDriftMS {
			return Timestamp{}, &DriftError{DriftMillis: remote.Physical - wall, MaxMillis: c.maxDriftMS}
		}

		newPhysical := max3(wall, old.physical, remote.Physical)

		var newLogical uint32
		switch {
		case newPhysical == old.physical && newPhysical == remote.Physical:
			newLogical = maxU32(old.logical, remote.Logical) + 1
		case newPhysical == old.physical:
			newLogical = old.logical + 1
		case newPhysical == remote.Physical:
			newLogical = remote.Logical + 1
		default:
			newLogical = 0
		}

		next := &state{physical: newPhysical, logical: newLogical}
		if c.current.CompareAndSwap(old, next) {
			return Timestamp{Physical: next.physical, Logical: next.logical, NodeID: c.nodeID}, nil
		}
	}
}

// Precedes reports whether a causally precedes b.
func Precedes(a, b Timestamp) bool {
	return a.Before(b)
}

func max3(a, b, c uint64) uint64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
