package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mz-tools/mzprof/internal/aggregate"
	"github.com/mz-tools/mzprof/internal/config"
	"github.com/mz-tools/mzprof/internal/logging"
	"github.com/mz-tools/mzprof/internal/mz"
	"github.com/mz-tools/mzprof/internal/pprofenc"
	"github.com/mz-tools/mzprof/internal/profiler"
	"github.com/mz-tools/mzprof/internal/subscribe"
)

// collectFlags are the options shared by the time and size commands.
type collectFlags struct {
	cluster string
	replica string
	output  string
}

func (f *collectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.cluster, "cluster", "", "Target cluster name")
	cmd.Flags().StringVar(&f.replica, "replica", "", "Target replica name")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output file path, or - for stdout")
}

// resolveConfig merges config file and environment defaults with the
// command-line arguments, which win.
func resolveConfig(args []string, flags collectFlags) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	if len(args) > 0 {
		cfg.SQLURL = args[0]
	}
	if flags.cluster != "" {
		cfg.Cluster = flags.cluster
	}
	if flags.replica != "" {
		cfg.Replica = flags.replica
	}

	switch {
	case cfg.SQLURL == "":
		return config.Config{}, fmt.Errorf("no SQL URL: pass it as an argument or set sql_url in the config file")
	case cfg.Cluster == "":
		return config.Config{}, fmt.Errorf("--cluster is required")
	case cfg.Replica == "":
		return config.Config{}, fmt.Errorf("--replica is required")
	}
	return cfg, nil
}

func newLogger(cfg config.Config) zerolog.Logger {
	level := cfg.LogLevel
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	return logging.NewWithComponent(logging.Config{Level: level, Quiet: flagQuiet}, "mzprof")
}

// runCollect performs one collection: subscribe, build, write.
func runCollect(cmd *cobra.Command, args []string, flags collectFlags, kind pprofenc.Kind, window time.Duration) error {
	cfg, err := resolveConfig(args, flags)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx := cmd.Context()
	connect := mz.ConnectConfig{
		URL:     cfg.SQLURL,
		Cluster: cfg.Cluster,
		Replica: cfg.Replica,
	}

	topo, err := mz.SubscribeOperators(ctx, connect, logger)
	if err != nil {
		return err
	}

	var metric *subscribe.Stream[aggregate.MetricRow]
	switch kind {
	case pprofenc.KindTime:
		metric, err = mz.SubscribeElapsed(ctx, connect, logger)
	case pprofenc.KindSize:
		metric, err = mz.SubscribeArrangementSize(ctx, connect, logger)
	}
	if err != nil {
		_ = topo.Close(ctx)
		return err
	}

	data, err := profiler.BuildProfile(ctx, profiler.Sources{Topology: topo, Metric: metric}, profiler.Options{
		Kind:   kind,
		Window: window,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	return writeArtifact(logger, flags.output, kind, data)
}

func writeArtifact(logger zerolog.Logger, output string, kind pprofenc.Kind, data []byte) error {
	if output == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}

	if output == "" {
		output = fmt.Sprintf("%s.pprof", kind)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}

	logger.Info().Str("path", output).Int("bytes", len(data)).Msg("wrote profile")
	return nil
}
