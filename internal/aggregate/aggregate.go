// Package aggregate folds metric snapshots into per-stack sample values.
//
// Input snapshots come from the same consistent timeline: the topology
// resolver and the metric multiset are drawn at one logical timestamp, so an
// operator name can never be attributed to another operator's value.
package aggregate

import (
	"sort"

	"github.com/mz-tools/mzprof/internal/topology"
)

// MetricRow is one row of a metric introspection relation. The accumulated
// multiplicity of the row is the metric value: a cumulative elapsed-time
// counter in nanoseconds, or an instantaneous size in bytes.
type MetricRow struct {
	Worker  uint64
	Address string
}

// Sample is the unit the profile encoder consumes: a fully disambiguated
// root-to-leaf stack with its worker and leaf address preserved for labels.
type Sample struct {
	Stack   []string
	Worker  uint64
	Address topology.Address
	Value   int64
}

// Diagnostics counts the recoverable oddities seen during aggregation. They
// are reported but never block completion.
type Diagnostics struct {
	// TopologyGaps counts stack frames filled with a placeholder name
	// because the enclosing scope had no operator row.
	TopologyGaps int
	// Orphans counts metric rows dropped because no topology entry matched
	// their own address.
	Orphans int
	// Regressions counts operators whose cumulative counter went backwards
	// between the two snapshots of a windowed collection.
	Regressions int
}

// Point emits one sample per metric row, values unchanged. Used for size
// profiles and for time profiles collected without a window.
func Point(res *topology.Resolver, metric map[MetricRow]int64) ([]Sample, Diagnostics, error) {
	var diag Diagnostics
	samples := make([]Sample, 0, len(metric))

	for row, value := range metric {
		sample, ok, err := resolve(res, row, value, &diag)
		if err != nil {
			return nil, diag, err
		}
		if ok {
			samples = append(samples, sample)
		}
	}

	sortSamples(samples)
	return samples, diag, nil
}

// Delta emits one sample per metric row of the later snapshot, valued at the
// counter's advance over the window. The topology is fixed to the later
// snapshot; an operator absent earlier has a zero baseline. A counter that
// went backwards was reset (the operator was dropped and re-created at the
// same address), so the earlier value is discarded rather than failing.
func Delta(res *topology.Resolver, earlier, later map[MetricRow]int64) ([]Sample, Diagnostics, error) {
	var diag Diagnostics
	samples := make([]Sample, 0, len(later))

	for row, value := range later {
		delta := value - earlier[row]
		if delta < 0 {
			delta = value
			diag.Regressions++
		}

		sample, ok, err := resolve(res, row, delta, &diag)
		if err != nil {
			return nil, diag, err
		}
		if ok {
			samples = append(samples, sample)
		}
	}

	sortSamples(samples)
	return samples, diag, nil
}

func resolve(res *topology.Resolver, row MetricRow, value int64, diag *Diagnostics) (Sample, bool, error) {
	addr, err := topology.ParseAddress(row.Address)
	if err != nil {
		return Sample{}, false, err
	}

	stack, gaps, ok := res.Stack(row.Worker, addr)
	if !ok {
		diag.Orphans++
		return Sample{}, false, nil
	}
	diag.TopologyGaps += gaps

	return Sample{
		Stack:   stack,
		Worker:  row.Worker,
		Address: addr,
		Value:   value,
	}, true, nil
}

// sortSamples fixes the deterministic output order: worker, then address.
func sortSamples(samples []Sample) {
	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Worker != samples[j].Worker {
			return samples[i].Worker < samples[j].Worker
		}
		return samples[i].Address.Compare(samples[j].Address) < 0
	})
}
