// Package config loads mzprof configuration.
//
// Values are resolved in order: built-in defaults, then the optional config
// file, then MZPROF_* environment variables. Command-line flags override all
// of these and are applied by the CLI layer.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EnvConfigDir overrides the directory searched for the config file.
const EnvConfigDir = "MZPROF_CONFIG_DIR"

// Config holds connection defaults and output settings.
type Config struct {
	// SQLURL is the Materialize SQL endpoint, e.g.
	// postgres://user@host:6875/materialize.
	SQLURL string `yaml:"sql_url"`
	// Cluster is the target cluster name.
	Cluster string `yaml:"cluster"`
	// Replica is the target replica name within the cluster.
	Replica string `yaml:"replica"`
	// LogLevel sets the default log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		LogLevel: "info",
	}
}

// Load resolves the configuration from defaults, the config file (if any),
// and environment variables.
func Load() (Config, error) {
	cfg := Default()

	path, err := filePath()
	if err == nil {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// filePath returns the config file location: $MZPROF_CONFIG_DIR/config.yaml
// or ~/.mzprof/config.yaml.
func filePath() (string, error) {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return filepath.Join(dir, "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".mzprof", "config.yaml"), nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MZPROF_SQL_URL"); v != "" {
		cfg.SQLURL = v
	}
	if v := os.Getenv("MZPROF_CLUSTER"); v != "" {
		cfg.Cluster = v
	}
	if v := os.Getenv("MZPROF_REPLICA"); v != "" {
		cfg.Replica = v
	}
	if v := os.Getenv("MZPROF_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
