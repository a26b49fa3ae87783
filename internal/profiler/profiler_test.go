package profiler

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/pprof/profile"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mz-tools/mzprof/internal/aggregate"
	"github.com/mz-tools/mzprof/internal/errors"
	"github.com/mz-tools/mzprof/internal/pprofenc"
	"github.com/mz-tools/mzprof/internal/subscribe"
	"github.com/mz-tools/mzprof/internal/topology"
)

// scriptReader replays scripted batches, then blocks until the context is
// canceled like a quiet live subscription would.
type scriptReader[R any] struct {
	batches []subscribe.Batch[R]
	next    int
	closed  bool
}

func (r *scriptReader[R]) Next(ctx context.Context) (subscribe.Batch[R], error) {
	if r.next >= len(r.batches) {
		<-ctx.Done()
		return subscribe.Batch[R]{}, ctx.Err()
	}
	b := r.batches[r.next]
	r.next++
	return b, nil
}

func (r *scriptReader[R]) Close(ctx context.Context) error {
	r.closed = true
	return nil
}

func progress[R any](at subscribe.Timestamp) subscribe.Batch[R] {
	return subscribe.Batch[R]{Frontier: at}
}

func batch[R any](frontier subscribe.Timestamp, updates ...subscribe.Update[R]) subscribe.Batch[R] {
	return subscribe.Batch[R]{Frontier: frontier, Updates: updates}
}

func operator(at subscribe.Timestamp, worker uint64, addr, name string) subscribe.Update[topology.Row] {
	return subscribe.Update[topology.Row]{
		Row:  topology.Row{Worker: worker, Address: addr, Name: name},
		Time: at,
		Diff: 1,
	}
}

func metric(at subscribe.Timestamp, worker uint64, addr string, diff int64) subscribe.Update[aggregate.MetricRow] {
	return subscribe.Update[aggregate.MetricRow]{
		Row:  aggregate.MetricRow{Worker: worker, Address: addr},
		Time: at,
		Diff: diff,
	}
}

func decode(t *testing.T, data []byte) *profile.Profile {
	t.Helper()
	prof, err := profile.Parse(bytes.NewReader(data))
	require.NoError(t, err)
	return prof
}

func TestBuildProfilePointMode(t *testing.T) {
	topo := &scriptReader[topology.Row]{batches: []subscribe.Batch[topology.Row]{
		progress[topology.Row](100),
		batch(101,
			operator(100, 0, "{1}", "dataflow"),
			operator(100, 0, "{1,5}", "map"),
		),
	}}
	met := &scriptReader[aggregate.MetricRow]{batches: []subscribe.Batch[aggregate.MetricRow]{
		progress[aggregate.MetricRow](100),
		batch(101, metric(100, 0, "{1,5}", 250)),
	}}

	data, err := BuildProfile(context.Background(), Sources{Topology: topo, Metric: met}, Options{
		Kind:   pprofenc.KindTime,
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	prof := decode(t, data)
	require.Len(t, prof.Sample, 1)
	require.Len(t, prof.Function, 2)

	sample := prof.Sample[0]
	assert.Equal(t, []int64{250}, sample.Value)
	assert.Equal(t, []string{"0"}, sample.Label["worker"])
	assert.Equal(t, "map", sample.Location[0].Line[0].Function.Name)
	assert.Equal(t, "dataflow", sample.Location[1].Line[0].Function.Name)

	assert.True(t, topo.closed, "topology subscription must be released")
	assert.True(t, met.closed, "metric subscription must be released")
}

func TestBuildProfileDeltaMode(t *testing.T) {
	topo := &scriptReader[topology.Row]{batches: []subscribe.Batch[topology.Row]{
		progress[topology.Row](1000),
		batch(1001, operator(1000, 0, "{1}", "dataflow")),
		progress[topology.Row](3001),
	}}
	// The counter stands at 100 at the start of the window and at 140 two
	// seconds later.
	met := &scriptReader[aggregate.MetricRow]{batches: []subscribe.Batch[aggregate.MetricRow]{
		progress[aggregate.MetricRow](1000),
		batch(1001, metric(1000, 0, "{1}", 100)),
		batch(3001, metric(2500, 0, "{1}", 40)),
	}}

	data, err := BuildProfile(context.Background(), Sources{Topology: topo, Metric: met}, Options{
		Kind:   pprofenc.KindTime,
		Window: 2 * time.Second,
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	prof := decode(t, data)
	require.Len(t, prof.Sample, 1)
	assert.Equal(t, []int64{40}, prof.Sample[0].Value)
	assert.Equal(t, (2 * time.Second).Nanoseconds(), prof.DurationNanos)
	assert.True(t, met.closed)
}

func TestBuildProfileDeltaSeesOperatorsAddedDuringTheWindow(t *testing.T) {
	topo := &scriptReader[topology.Row]{batches: []subscribe.Batch[topology.Row]{
		progress[topology.Row](1000),
		batch(1001, operator(1000, 0, "{1}", "dataflow")),
		// A second dataflow appears mid-window.
		batch(3001, operator(2000, 0, "{2}", "late")),
	}}
	met := &scriptReader[aggregate.MetricRow]{batches: []subscribe.Batch[aggregate.MetricRow]{
		progress[aggregate.MetricRow](1000),
		batch(1001, metric(1000, 0, "{1}", 100)),
		batch(3001,
			metric(2500, 0, "{1}", 40),
			metric(2500, 0, "{2}", 5),
		),
	}}

	data, err := BuildProfile(context.Background(), Sources{Topology: topo, Metric: met}, Options{
		Kind:   pprofenc.KindTime,
		Window: 2 * time.Second,
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	prof := decode(t, data)
	require.Len(t, prof.Sample, 2)
	assert.Equal(t, []int64{40}, prof.Sample[0].Value)
	assert.Equal(t, []int64{5}, prof.Sample[1].Value, "absent-earlier operator gets a zero baseline")
}

func TestBuildProfileRejectsWindowedSizeProfiles(t *testing.T) {
	topo := &scriptReader[topology.Row]{}
	met := &scriptReader[aggregate.MetricRow]{}

	_, err := BuildProfile(context.Background(), Sources{Topology: topo, Metric: met}, Options{
		Kind:   pprofenc.KindSize,
		Window: time.Second,
		Logger: zerolog.Nop(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "point mode")
}

func TestBuildProfilePropagatesTransportFaultsAndCloses(t *testing.T) {
	topo := &scriptReader[topology.Row]{}
	met := &scriptReader[aggregate.MetricRow]{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BuildProfile(ctx, Sources{Topology: topo, Metric: met}, Options{
		Kind:   pprofenc.KindTime,
		Logger: zerolog.Nop(),
	})
	require.Error(t, err)
	assert.True(t, topo.closed)
	assert.True(t, met.closed)
}

func TestBuildProfileSkewedAsOfs(t *testing.T) {
	// The metric subscription starts one tick later than topology; both
	// snapshots are taken at the later timestamp.
	topo := &scriptReader[topology.Row]{batches: []subscribe.Batch[topology.Row]{
		progress[topology.Row](100),
		batch(102, operator(100, 0, "{1}", "dataflow")),
	}}
	met := &scriptReader[aggregate.MetricRow]{batches: []subscribe.Batch[aggregate.MetricRow]{
		progress[aggregate.MetricRow](101),
		batch(102, metric(101, 0, "{1}", 7)),
	}}

	data, err := BuildProfile(context.Background(), Sources{Topology: topo, Metric: met}, Options{
		Kind:   pprofenc.KindTime,
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	prof := decode(t, data)
	require.Len(t, prof.Sample, 1)
	assert.Equal(t, []int64{7}, prof.Sample[0].Value)
}

func TestBuildProfileErrorsAreClassified(t *testing.T) {
	topo := &scriptReader[topology.Row]{batches: []subscribe.Batch[topology.Row]{
		progress[topology.Row](100),
		batch(101, operator(100, 0, "garbage-address", "dataflow")),
	}}
	met := &scriptReader[aggregate.MetricRow]{batches: []subscribe.Batch[aggregate.MetricRow]{
		progress[aggregate.MetricRow](100),
		progress[aggregate.MetricRow](101),
	}}

	_, err := BuildProfile(context.Background(), Sources{Topology: topo, Metric: met}, Options{
		Kind:   pprofenc.KindTime,
		Logger: zerolog.Nop(),
	})
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err), "malformed server data is a protocol fault")
}
