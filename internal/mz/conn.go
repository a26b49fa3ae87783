// Package mz talks to a Materialize SQL endpoint: connection setup targeting
// one cluster replica, and the introspection relations mzprof subscribes to.
package mz

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mz-tools/mzprof/internal/errors"
)

const defaultAppName = "mzprof"

// ConnectConfig describes the endpoint and the replica whose introspection
// relations are profiled. Introspection data is replica-local, so the session
// must be pinned with the cluster and cluster_replica parameters.
type ConnectConfig struct {
	// URL is the SQL endpoint, e.g. postgres://user@host:6875/materialize.
	URL string
	// Cluster is the target cluster name.
	Cluster string
	// Replica is the target replica name within Cluster.
	Replica string
	// AppName overrides the reported application_name.
	AppName string
}

// Connect opens a dedicated session pinned to the configured replica. Each
// subscription needs its own connection: a SUBSCRIBE occupies the session
// until it is closed.
func (c ConnectConfig) Connect(ctx context.Context) (*pgx.Conn, error) {
	cfg, err := pgx.ParseConfig(c.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing SQL URL: %w", err)
	}

	appName := c.AppName
	if appName == "" {
		appName = defaultAppName
	}
	cfg.RuntimeParams["application_name"] = appName
	cfg.RuntimeParams["cluster"] = c.Cluster
	cfg.RuntimeParams["cluster_replica"] = c.Replica

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Transport(fmt.Errorf("connecting to %s: %w", cfg.Host, err))
	}
	return conn, nil
}
