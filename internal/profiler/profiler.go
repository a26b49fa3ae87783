// Package profiler drives one profile collection end to end: it feeds the
// subscription streams into consistent state tables, snapshots topology and
// metric at one logical timestamp, aggregates, and encodes the artifact.
package profiler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mz-tools/mzprof/internal/aggregate"
	"github.com/mz-tools/mzprof/internal/errors"
	"github.com/mz-tools/mzprof/internal/pprofenc"
	"github.com/mz-tools/mzprof/internal/state"
	"github.com/mz-tools/mzprof/internal/subscribe"
	"github.com/mz-tools/mzprof/internal/topology"
)

// closeTimeout bounds subscription teardown, which must run even when the
// collection context was canceled.
const closeTimeout = 5 * time.Second

// Sources are the two live subscriptions a collection consumes. BuildProfile
// takes ownership and closes both on every exit path.
type Sources struct {
	Topology subscribe.Reader[topology.Row]
	Metric   subscribe.Reader[aggregate.MetricRow]
}

// Options selects the metric kind and the collection mode.
type Options struct {
	Kind pprofenc.Kind
	// Window selects delta mode when positive: the profile covers the
	// counter's advance over this duration. Zero means point mode. Only
	// time profiles support a window.
	Window time.Duration
	Logger zerolog.Logger
}

// BuildProfile runs one collection and returns the encoded artifact.
func BuildProfile(ctx context.Context, src Sources, opts Options) ([]byte, error) {
	if opts.Window > 0 && opts.Kind != pprofenc.KindTime {
		return nil, fmt.Errorf("%s profiles are always point mode", opts.Kind)
	}
	if opts.Window < 0 {
		return nil, fmt.Errorf("negative collection window %s", opts.Window)
	}

	defer closeReader(src.Topology, opts.Logger, "closing topology subscription")
	defer closeReader(src.Metric, opts.Logger, "closing metric subscription")

	topoTable := state.NewTable(src.Topology)
	metricTable := state.NewTable(src.Metric)

	// Both subscriptions start at their own as-of; every snapshot below is
	// taken at the same timestamp past both, so topology and metric views
	// are mutually consistent.
	topoAsOf, err := topoTable.CatchUp(ctx)
	if err != nil {
		return nil, err
	}
	metricAsOf, err := metricTable.CatchUp(ctx)
	if err != nil {
		return nil, err
	}
	start := max(topoAsOf, metricAsOf)
	opts.Logger.Debug().
		Int64("topology_as_of", int64(topoAsOf)).
		Int64("metric_as_of", int64(metricAsOf)).
		Msg("subscriptions caught up")

	metricFirst, err := metricTable.Snapshot(ctx, start)
	if err != nil {
		return nil, err
	}

	var (
		samples []aggregate.Sample
		diag    aggregate.Diagnostics
	)
	if opts.Window > 0 {
		end := start + subscribe.Timestamp(opts.Window.Milliseconds())
		opts.Logger.Info().Dur("window", opts.Window).Msg("collecting windowed profile")

		// Bounded wait: the stream keeps feeding the tables until the
		// frontier passes the end of the window.
		metricSecond, err := metricTable.Snapshot(ctx, end)
		if err != nil {
			return nil, err
		}
		resolver, err := resolverAt(ctx, topoTable, end)
		if err != nil {
			return nil, err
		}
		samples, diag, err = aggregate.Delta(resolver, metricFirst, metricSecond)
		if err != nil {
			return nil, errors.Transport(err)
		}
	} else {
		opts.Logger.Info().Msg("collecting snapshot profile")

		resolver, err := resolverAt(ctx, topoTable, start)
		if err != nil {
			return nil, err
		}
		samples, diag, err = aggregate.Point(resolver, metricFirst)
		if err != nil {
			return nil, errors.Transport(err)
		}
	}

	reportDiagnostics(opts.Logger, diag)
	opts.Logger.Info().Int("samples", len(samples)).Msg("aggregation complete")

	return pprofenc.Encode(opts.Kind, samples, pprofenc.Options{
		Start:    time.UnixMilli(int64(start)),
		Duration: opts.Window,
	})
}

// resolverAt snapshots the topology relation at the given timestamp and
// builds the stack resolver over it. Malformed addresses mean the server
// sent something the protocol does not allow.
func resolverAt(ctx context.Context, table *state.Table[topology.Row], at subscribe.Timestamp) (*topology.Resolver, error) {
	snapshot, err := table.Snapshot(ctx, at)
	if err != nil {
		return nil, err
	}
	resolver, err := topology.NewResolver(snapshot)
	if err != nil {
		return nil, errors.Transport(err)
	}
	return resolver, nil
}

// reportDiagnostics surfaces recoverable oddities without blocking
// completion.
func reportDiagnostics(logger zerolog.Logger, diag aggregate.Diagnostics) {
	if diag.TopologyGaps > 0 {
		logger.Warn().Int("count", diag.TopologyGaps).
			Msg("topology gaps filled with placeholder names")
	}
	if diag.Orphans > 0 {
		logger.Warn().Int("count", diag.Orphans).
			Msg("metric rows dropped without a matching operator")
	}
	if diag.Regressions > 0 {
		logger.Warn().Int("count", diag.Regressions).
			Msg("counter regressions clamped (operators re-created during the window)")
	}
}

func closeReader[R any](reader subscribe.Reader[R], logger zerolog.Logger, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := reader.Close(ctx); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}
