// Package subscribe reads timestamped, signed row events from a Materialize
// SUBSCRIBE stream.
//
// A subscription delivers rows in nondecreasing timestamp order, interleaved
// with progress markers. Each progress marker closes a Batch: every update at
// a timestamp strictly below the batch frontier has been delivered once the
// batch is observed. Updates within a batch carry their own timestamps and
// are not ordered among themselves.
package subscribe

import (
	"context"
	"fmt"
)

// Timestamp is a Materialize logical timestamp, milliseconds since the Unix
// epoch.
type Timestamp int64

// NoTimestamp is the sentinel for "no frontier observed yet".
const NoTimestamp Timestamp = -1

// Update is one signed row event: Diff > 0 inserts Row that many times,
// Diff < 0 retracts it.
type Update[R any] struct {
	Row  R
	Time Timestamp
	Diff int64
}

// Batch groups the updates delivered between two progress markers.
// Frontier is the progress timestamp that closed the batch: all updates at
// timestamps < Frontier have been delivered.
type Batch[R any] struct {
	Frontier Timestamp
	Updates  []Update[R]
}

// Reader is an ordered diff-event source for one relation.
//
// Next blocks until the next progress marker arrives and returns the batch it
// closed. A transport error is fatal: the reader is unusable afterwards and
// the caller must not retry, since a fresh subscription cannot reconstruct
// prior state consistently.
type Reader[R any] interface {
	// Next returns the next batch. It suspends on the underlying transport
	// between batches and honors ctx cancellation.
	Next(ctx context.Context) (Batch[R], error)
	// Close releases the subscription. Safe to call at any point and more
	// than once.
	Close(ctx context.Context) error
}

// Raw is one wire row after column scanning, before batching. On progress
// rows only Time is meaningful.
type Raw[R any] struct {
	Time       Timestamp
	Progressed bool
	Diff       int64
	Row        R
}

// batcher accumulates raw rows into batches and enforces the ordering
// contract shared by all readers.
type batcher[R any] struct {
	frontier Timestamp
	stash    []Update[R]
}

func newBatcher[R any]() batcher[R] {
	return batcher[R]{frontier: NoTimestamp}
}

// absorb folds one raw row. It returns a complete batch when raw is a
// progress marker, and an error when the stream violates timestamp ordering.
func (b *batcher[R]) absorb(raw Raw[R]) (Batch[R], bool, error) {
	if raw.Time < b.frontier {
		return Batch[R]{}, false, fmt.Errorf(
			"subscription delivered timestamp %d behind frontier %d", raw.Time, b.frontier)
	}

	if raw.Progressed {
		b.frontier = raw.Time
		batch := Batch[R]{Frontier: raw.Time, Updates: b.stash}
		b.stash = nil
		return batch, true, nil
	}

	b.stash = append(b.stash, Update[R]{Row: raw.Row, Time: raw.Time, Diff: raw.Diff})
	return Batch[R]{}, false, nil
}
