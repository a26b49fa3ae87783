package mz

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/mz-tools/mzprof/internal/aggregate"
	"github.com/mz-tools/mzprof/internal/errors"
	"github.com/mz-tools/mzprof/internal/safe"
	"github.com/mz-tools/mzprof/internal/subscribe"
	"github.com/mz-tools/mzprof/internal/topology"
)

// operatorsQuery yields one row per live operator per worker: its address and
// name. Diffs are plain row inserts/retracts (multiplicity 1).
const operatorsQuery = `
SELECT o.worker_id::int8, a.address::text, o.name
FROM mz_introspection.mz_dataflow_operators_per_worker o
JOIN mz_introspection.mz_dataflow_addresses_per_worker a
  ON o.id = a.id AND o.worker_id = a.worker_id
`

// elapsedQuery yields scheduling-elapsed rows; the accumulated multiplicity
// of a row is the operator's cumulative elapsed time in nanoseconds.
const elapsedQuery = `
SELECT e.worker_id::int8, a.address::text
FROM mz_introspection.mz_scheduling_elapsed_raw e
JOIN mz_introspection.mz_dataflow_addresses_per_worker a
  ON e.id = a.id AND e.worker_id = a.worker_id
`

// arrangementSizeQuery yields arrangement heap and batcher size rows; the
// accumulated multiplicity is the operator's current size in bytes.
const arrangementSizeQuery = `
SELECT s.worker_id::int8, a.address::text
FROM (
  SELECT operator_id AS id, worker_id
  FROM mz_introspection.mz_arrangement_heap_size_raw
  UNION ALL
  SELECT operator_id AS id, worker_id
  FROM mz_introspection.mz_arrangement_batcher_size_raw
) s
JOIN mz_introspection.mz_dataflow_addresses_per_worker a
  ON s.id = a.id AND s.worker_id = a.worker_id
`

// SubscribeQuery wraps an inner query for streaming delivery. PROGRESS
// interleaves frontier markers; SNAPSHOT controls whether the relation's
// state as of the subscription start is delivered first.
func SubscribeQuery(inner string, snapshot bool) string {
	return fmt.Sprintf("SUBSCRIBE (%s) WITH (PROGRESS, SNAPSHOT = %t)", inner, snapshot)
}

// SubscribeOperators starts the topology subscription.
func SubscribeOperators(ctx context.Context, cfg ConnectConfig, logger zerolog.Logger) (*subscribe.Stream[topology.Row], error) {
	return open(ctx, cfg, operatorsQuery, scanOperator, logger)
}

// SubscribeElapsed starts the elapsed-time metric subscription.
func SubscribeElapsed(ctx context.Context, cfg ConnectConfig, logger zerolog.Logger) (*subscribe.Stream[aggregate.MetricRow], error) {
	return open(ctx, cfg, elapsedQuery, scanMetric, logger)
}

// SubscribeArrangementSize starts the memory-size metric subscription.
func SubscribeArrangementSize(ctx context.Context, cfg ConnectConfig, logger zerolog.Logger) (*subscribe.Stream[aggregate.MetricRow], error) {
	return open(ctx, cfg, arrangementSizeQuery, scanMetric, logger)
}

// open connects, issues the SUBSCRIBE, and hands both to a Stream. The
// context governs the life of the subscription: canceling it aborts the
// in-flight receive.
func open[R any](ctx context.Context, cfg ConnectConfig, inner string, scan subscribe.ScanFunc[R], logger zerolog.Logger) (*subscribe.Stream[R], error) {
	conn, err := cfg.Connect(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, SubscribeQuery(inner, true))
	if err != nil {
		_ = conn.Close(ctx)
		return nil, errors.Transport(fmt.Errorf("starting subscription: %w", err))
	}

	return subscribe.NewStream(conn, rows, scan, logger), nil
}

// scanPrefix reads the columns SUBSCRIBE prepends to every row. On progress
// rows the diff (and all data columns) are NULL.
func scanPrefix(ts pgtype.Numeric, progressed pgtype.Bool, diff pgtype.Int8) (subscribe.Timestamp, bool, int64, error) {
	v, err := ts.Int64Value()
	if err != nil {
		return 0, false, 0, fmt.Errorf("reading mz_timestamp: %w", err)
	}
	if !v.Valid {
		return 0, false, 0, fmt.Errorf("mz_timestamp is null")
	}
	return subscribe.Timestamp(v.Int64), progressed.Valid && progressed.Bool, diff.Int64, nil
}

func scanOperator(rows pgx.Rows) (subscribe.Raw[topology.Row], error) {
	var (
		ts         pgtype.Numeric
		progressed pgtype.Bool
		diff       pgtype.Int8
		worker     pgtype.Int8
		address    pgtype.Text
		name       pgtype.Text
	)
	if err := rows.Scan(&ts, &progressed, &diff, &worker, &address, &name); err != nil {
		return subscribe.Raw[topology.Row]{}, err
	}

	at, progress, d, err := scanPrefix(ts, progressed, diff)
	if err != nil {
		return subscribe.Raw[topology.Row]{}, err
	}
	if progress {
		return subscribe.Raw[topology.Row]{Time: at, Progressed: true}, nil
	}

	w, _ := safe.Int64ToUint64(worker.Int64)
	return subscribe.Raw[topology.Row]{
		Time: at,
		Diff: d,
		Row:  topology.Row{Worker: w, Address: address.String, Name: name.String},
	}, nil
}

func scanMetric(rows pgx.Rows) (subscribe.Raw[aggregate.MetricRow], error) {
	var (
		ts         pgtype.Numeric
		progressed pgtype.Bool
		diff       pgtype.Int8
		worker     pgtype.Int8
		address    pgtype.Text
	)
	if err := rows.Scan(&ts, &progressed, &diff, &worker, &address); err != nil {
		return subscribe.Raw[aggregate.MetricRow]{}, err
	}

	at, progress, d, err := scanPrefix(ts, progressed, diff)
	if err != nil {
		return subscribe.Raw[aggregate.MetricRow]{}, err
	}
	if progress {
		return subscribe.Raw[aggregate.MetricRow]{Time: at, Progressed: true}, nil
	}

	w, _ := safe.Int64ToUint64(worker.Int64)
	return subscribe.Raw[aggregate.MetricRow]{
		Time: at,
		Diff: d,
		Row:  aggregate.MetricRow{Worker: w, Address: address.String},
	}, nil
}
