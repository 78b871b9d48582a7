package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"commitmentkernel/observability/logging"
)

// ErrAtomicityViolation is returned by CommitEntry when a settlement
// payload is marked atomic but has a mix of settled and unsettled
// legs — the mechanism enforcing the DvP/PvP property.
var ErrAtomicityViolation = errors.New("ledger: atomic settlement has a partial leg mix")

// ErrChainMismatch is returned by CommitEntry when the entry being
// committed no longer matches the current chain head (index or
// previous-hash drift, e.g. from a concurrent append slipping in
// between BuildEntry and CommitEntry).
var ErrChainMismatch = errors.New("ledger: entry no longer matches chain head")

// Ledger is an append-only, hash-linked log of entries. Appends are
// globally serialized behind a single writer section so the hash
// chain is unambiguous; reads never block behind that section longer
// than a slice copy.
type Ledger struct {
	mu      sync.RWMutex
	entries []Entry
	nowFn   func() time.Time
	logger  *slog.Logger
}

// New constructs an empty ledger.
func New() *Ledger {
	return &Ledger{nowFn: time.Now}
}

// WithClock overrides the ledger's time source, for deterministic
// tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.nowFn = now
	return l
}

// WithLogger attaches a structured logger; nil falls back to
// slog.Default().
func (l *Ledger) WithLogger(logger *slog.Logger) *Ledger {
	l.logger = logger
	return l
}

func (l *Ledger) log() *slog.Logger {
	if l.logger != nil {
		return l.logger
	}
	return slog.Default()
}

// Len reports how many entries the ledger currently holds.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a copy of the full entry slice, for projection folds
// and serialization.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// BuildEntry is the pure half of Append: given the ledger's current
// head, it computes the next index, the previous-hash link, and the
// entry hash, without mutating or persisting anything. It may be
// retried freely.
func (l *Ledger) BuildEntry(traceID string, kind Kind, commitmentID string, payload Payload) (Entry, error) {
	l.mu.RLock()
	var (
		index       uint64
		prevHash    [32]byte
		hasPrevious bool
	)
	if n := len(l.entries); n > 0 {
		head := l.entries[n-1]
		index = head.Index + 1
		prevHash = head.EntryHash
		hasPrevious = true
	}
	l.mu.RUnlock()

	entry := Entry{
		Index:        index,
		TraceID:      traceID,
		EntryKind:    kind,
		CommitmentID: commitmentID,
		Timestamp:    l.nowFn().UTC(),
		Payload:      payload,
		PreviousHash: prevHash,
		HasPrevious:  hasPrevious,
	}

	hash, err := computeEntryHash(&entry)
	if err != nil {
		return Entry{}, err
	}
	entry.EntryHash = hash
	return entry, nil
}

// CommitEntry is the effectful half of Append: it re-validates index,
// previous-hash linkage, and the entry hash against the current chain
// head before accepting, so an external durability step (e.g. fsync)
// can be interposed between BuildEntry and CommitEntry without risking
// a corrupted chain.
func (l *Ledger) CommitEntry(entry Entry) error {
	if settlement, ok := entry.Payload.(SettlementPayload); ok {
		if settlement.Atomic && settlement.AnySettled() && !settlement.AllSettled() {
			l.log().Warn("ledger append rejected", "error", ErrAtomicityViolation.Error(),
				"commitment_id", entry.CommitmentID, logging.MaskTraceID(entry.TraceID))
			return ErrAtomicityViolation
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var (
		wantIndex    uint64
		wantPrevHash [32]byte
		wantHasPrev  bool
	)
	if n := len(l.entries); n > 0 {
		head := l.entries[n-1]
		wantIndex = head.Index + 1
		wantPrevHash = head.EntryHash
		wantHasPrev = true
	}

	if entry.Index != wantIndex || entry.HasPrevious != wantHasPrev || (wantHasPrev && entry.PreviousHash != wantPrevHash) {
		l.log().Warn("ledger append rejected", "error", ErrChainMismatch.Error(),
			"commitment_id", entry.CommitmentID, logging.MaskTraceID(entry.TraceID))
		return ErrChainMismatch
	}

	want, err := computeEntryHash(&entry)
	if err != nil {
		return err
	}
	if want != entry.EntryHash {
		l.log().Warn("ledger append rejected", "error", ErrChainMismatch.Error(),
			"commitment_id", entry.CommitmentID, logging.MaskTraceID(entry.TraceID))
		return fmt.Errorf("ledger: %w: stored hash does not match recomputed hash", ErrChainMismatch)
	}

	l.entries = append(l.entries, entry)
	l.log().Debug("ledger entry committed", "commitment_id", entry.CommitmentID, "index", entry.Index, logging.MaskTraceID(entry.TraceID))
	return nil
}

// Append composes BuildEntry and CommitEntry into a single call for
// callers that do not need to interpose a durability step between the
// two.
func (l *Ledger) Append(traceID string, kind Kind, commitmentID string, payload Payload) (Entry, error) {
	entry, err := l.BuildEntry(traceID, kind, commitmentID, payload)
	if err != nil {
		return Entry{}, err
	}
	if err := l.CommitEntry(entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// VerifyChain walks the full chain, recomputing every entry hash and
// checking previous-hash linkage and index contiguity. It returns the
// index of the first mismatching entry, if any.
func (l *Ledger) VerifyChain() (ok bool, badIndex int) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var prevHash [32]byte
	for i := range l.entries {
		e := &l.entries[i]
		if uint64(i) != e.Index {
			return false, i
		}
		if i == 0 {
			if e.HasPrevious {
				return false, i
			}
		} else if !e.HasPrevious || e.PreviousHash != prevHash {
			return false, i
		}
		if !Verify(e) {
			return false, i
		}
		prevHash = e.EntryHash
	}
	return true, -1
}
