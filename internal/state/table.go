// Package state materializes a diff stream into consistent snapshots.
//
// A Table absorbs signed row events for one relation and answers "the exact
// multiset of live rows at timestamp T" once the stream's frontier has passed
// T. It is the only holder of mutable state in the pipeline and is driven by
// a single caller in strict sequence; it needs no internal locking.
package state

import (
	"context"

	"github.com/mz-tools/mzprof/internal/errors"
	"github.com/mz-tools/mzprof/internal/subscribe"
)

// Table accumulates multiplicities per distinct row for one relation.
type Table[R comparable] struct {
	reader subscribe.Reader[R]

	// rows is the multiset at logical time `applied`. Rows whose accumulated
	// multiplicity reaches zero are removed, not retained as zero-valued.
	rows    map[R]int64
	pending []subscribe.Update[R]

	frontier subscribe.Timestamp
	applied  subscribe.Timestamp
}

// NewTable creates a table fed by reader. The table does not own the reader;
// closing it remains the caller's responsibility.
func NewTable[R comparable](reader subscribe.Reader[R]) *Table[R] {
	return &Table[R]{
		reader:   reader,
		rows:     make(map[R]int64),
		frontier: subscribe.NoTimestamp,
		applied:  subscribe.NoTimestamp,
	}
}

// Frontier returns the latest progress timestamp observed, or
// subscribe.NoTimestamp before the first batch.
func (t *Table[R]) Frontier() subscribe.Timestamp {
	return t.frontier
}

// CatchUp advances to the subscription's as-of: the first progress marker,
// which communicates the timestamp the delivered historical state is read at.
func (t *Table[R]) CatchUp(ctx context.Context) (subscribe.Timestamp, error) {
	for t.frontier == subscribe.NoTimestamp {
		if err := t.pull(ctx); err != nil {
			return subscribe.NoTimestamp, err
		}
	}
	return t.frontier, nil
}

// Snapshot blocks until the frontier has advanced strictly past atLeast, then
// returns the multiset of rows with positive multiplicity at exactly atLeast.
//
// Repeated snapshots must use nondecreasing timestamps; they then observe
// prefix-consistent views of the same diff stream. Snapshotting several
// tables at the same timestamp yields mutually consistent views.
func (t *Table[R]) Snapshot(ctx context.Context, atLeast subscribe.Timestamp) (map[R]int64, error) {
	if atLeast < t.applied {
		return nil, errors.Internalf(
			"snapshot at %d requested after snapshot at %d", atLeast, t.applied)
	}

	for t.frontier <= atLeast {
		if err := t.pull(ctx); err != nil {
			return nil, err
		}
	}

	t.apply(atLeast)

	snapshot := make(map[R]int64, len(t.rows))
	for row, multiplicity := range t.rows {
		if multiplicity > 0 {
			snapshot[row] = multiplicity
		}
	}
	return snapshot, nil
}

// pull absorbs one batch from the reader.
func (t *Table[R]) pull(ctx context.Context) error {
	batch, err := t.reader.Next(ctx)
	if err != nil {
		return err
	}
	t.pending = append(t.pending, batch.Updates...)
	t.frontier = batch.Frontier
	return nil
}

// apply folds every pending update with time <= upTo into the multiset.
// Later updates stay pending for the next snapshot.
func (t *Table[R]) apply(upTo subscribe.Timestamp) {
	kept := t.pending[:0]
	for _, update := range t.pending {
		if update.Time > upTo {
			kept = append(kept, update)
			continue
		}
		sum := t.rows[update.Row] + update.Diff
		if sum == 0 {
			delete(t.rows, update.Row)
		} else {
			t.rows[update.Row] = sum
		}
	}
	t.pending = kept
	t.applied = upTo
}
