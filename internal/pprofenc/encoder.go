// Package pprofenc serializes aggregated samples into the pprof wire format.
//
// The encoder is deterministic: the same sample set produces byte-identical
// output regardless of input order. Functions and locations are assigned ids
// in first-insertion order over the sorted samples, and the string table is
// built by the pprof library in traversal order of that fixed structure.
package pprofenc

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/pprof/profile"

	"github.com/mz-tools/mzprof/internal/aggregate"
	"github.com/mz-tools/mzprof/internal/errors"
)

// Kind selects the metric the profile carries.
type Kind int

const (
	// KindTime is a cumulative elapsed-time profile in nanoseconds.
	KindTime Kind = iota
	// KindSize is an instantaneous memory-size profile in bytes.
	KindSize
)

func (k Kind) String() string {
	switch k {
	case KindTime:
		return "time"
	case KindSize:
		return "size"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// sampleType returns the pprof value-type metadata for the kind.
func (k Kind) sampleType() *profile.ValueType {
	switch k {
	case KindSize:
		return &profile.ValueType{Type: "inuse_space", Unit: "bytes"}
	default:
		return &profile.ValueType{Type: "cpu", Unit: "nanoseconds"}
	}
}

// Options carries profile-level metadata.
type Options struct {
	// Start is the wall-clock time the collection began at.
	Start time.Time
	// Duration is the collection window for delta-mode profiles, zero
	// otherwise.
	Duration time.Duration
}

// locationKey identifies a frame: one resolved scope prefix. Sibling stacks
// share ancestor frames, so the artifact grows with the number of distinct
// operators rather than the number of samples. Two workers naming the same
// address identically share frames too; they stay distinguishable through
// the worker sample label.
type locationKey struct {
	function uint64
	address  string
}

// Encode builds the gzip-compressed pprof artifact for the sample set.
//
// Invariant violations (empty stacks, stack/address depth mismatches) are
// internal defects: they signal a bug in aggregation and are never patched
// over.
func Encode(kind Kind, samples []aggregate.Sample, opts Options) ([]byte, error) {
	ordered := make([]aggregate.Sample, len(samples))
	copy(ordered, samples)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Worker != ordered[j].Worker {
			return ordered[i].Worker < ordered[j].Worker
		}
		return ordered[i].Address.Compare(ordered[j].Address) < 0
	})

	prof := &profile.Profile{
		SampleType:    []*profile.ValueType{kind.sampleType()},
		PeriodType:    kind.sampleType(),
		Period:        1,
		DurationNanos: opts.Duration.Nanoseconds(),
	}
	if !opts.Start.IsZero() {
		prof.TimeNanos = opts.Start.UnixNano()
	}

	functions := make(map[string]*profile.Function)
	locations := make(map[locationKey]*profile.Location)

	for _, sample := range ordered {
		if len(sample.Stack) == 0 {
			return nil, errors.Internalf("sample for worker %d has an empty stack", sample.Worker)
		}
		if len(sample.Stack) != len(sample.Address) {
			return nil, errors.Internalf(
				"sample at %s has stack depth %d for address depth %d",
				sample.Address, len(sample.Stack), len(sample.Address))
		}

		// Locations leaf first, as the format requires.
		locs := make([]*profile.Location, 0, len(sample.Stack))
		for i := len(sample.Stack) - 1; i >= 0; i-- {
			name := sample.Stack[i]
			prefix := sample.Address.Prefix(i + 1)

			fn, ok := functions[name]
			if !ok {
				fn = &profile.Function{
					ID:   uint64(len(functions) + 1),
					Name: name,
				}
				functions[name] = fn
				prof.Function = append(prof.Function, fn)
			}

			key := locationKey{function: fn.ID, address: prefix.String()}
			loc, ok := locations[key]
			if !ok {
				loc = &profile.Location{
					ID:   uint64(len(locations) + 1),
					Line: []profile.Line{{Function: fn}},
				}
				locations[key] = loc
				prof.Location = append(prof.Location, loc)
			}
			locs = append(locs, loc)
		}

		prof.Sample = append(prof.Sample, &profile.Sample{
			Location: locs,
			Value:    []int64{sample.Value},
			Label: map[string][]string{
				"worker":  {strconv.FormatUint(sample.Worker, 10)},
				"address": {sample.Address.String()},
			},
		})
	}

	var buf bytes.Buffer
	if err := prof.Write(&buf); err != nil {
		return nil, errors.Internal(err)
	}
	return buf.Bytes(), nil
}
