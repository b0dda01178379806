package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPaths     []string
	Replay          int
	ShutdownTimeout time.Duration
	ShowVersion     bool
	Validate        bool
}

type layers []string

func (l *layers) String() string { return fmt.Sprint(*l) }

func (l *layers) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	var paths layers
	flag.Var(&paths, "config",
		"Configuration layer, repeatable; later layers override earlier ones (env: FLOWFAULT_CONFIG)")

	flag.IntVar(&cfg.Replay, "replay",
		getEnvInt("FLOWFAULT_REPLAY", 1),
		"Rounds of sample faults replayed through every flow, 0 to disable (env: FLOWFAULT_REPLAY)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("FLOWFAULT_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: FLOWFAULT_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n\n", appName)
		_, _ = fmt.Fprintln(flag.CommandLine.Output(),
			"Builds the error handlers of every configured flow and replays sample faults through them.")
		_, _ = fmt.Fprintln(flag.CommandLine.Output())
		flag.PrintDefaults()
	}

	flag.Parse()

	cfg.ConfigPaths = paths
	if len(cfg.ConfigPaths) == 0 {
		if env := os.Getenv("FLOWFAULT_CONFIG"); env != "" {
			cfg.ConfigPaths = []string{env}
		}
	}
	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.Replay < 0 {
		return fmt.Errorf("replay must be >= 0, got %d", cfg.Replay)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown-timeout must be positive, got %s", cfg.ShutdownTimeout)
	}
	return nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
