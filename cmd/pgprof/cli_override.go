package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pg-sharding/pgprof/pkg/config"
)

type overrideRule struct {
	name     string
	changed  func() bool
	validate func() error
	apply    func()
}

func setIfNotZero(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func buildOverrideRules(cmd *cobra.Command, cfg *config.Profiler) []overrideRule {
	changed := func(name string) func() bool {
		return func() bool { return cmd.Flags().Changed(name) }
	}
	return []overrideRule{
		{
			name:    "log-level",
			changed: changed("log-level"),
			apply:   func() { cfg.LogLevel = logLevel },
		},
		{
			name:    "pretty-log",
			changed: changed("pretty-log"),
			apply:   func() { cfg.PrettyLogging = prettyLogging },
		},
		{
			name:    "dsn",
			changed: changed("dsn"),
			apply:   func() { setIfNotEmpty(&cfg.DSN, dsn) },
		},
		{
			name:    "driver",
			changed: changed("driver"),
			validate: func() error {
				switch driverName {
				case config.DriverPostgres, config.DriverPgx:
					return nil
				}
				return fmt.Errorf("unknown driver %q", driverName)
			},
			apply: func() { cfg.Driver = driverName },
		},
		{
			name:    "concurrency",
			changed: changed("concurrency"),
			validate: func() error {
				if concurrency < 0 {
					return fmt.Errorf("must not be negative")
				}
				return nil
			},
			apply: func() { setIfNotZero(&cfg.Concurrency, concurrency) },
		},
		{
			name:    "export",
			changed: changed("export"),
			apply:   func() { setIfNotEmpty(&cfg.ExportPath, exportPath) },
		},
		{
			name:    "http-addr",
			changed: changed("http-addr"),
			apply:   func() { cfg.HttpAddr = httpAddr },
		},
		{
			name:    "max-monitors",
			changed: changed("max-monitors"),
			apply:   func() { setIfNotZero(&cfg.MaxMonitors, maxMonitors) },
		},
		{
			name:    "connect-retries",
			changed: changed("connect-retries"),
			apply:   func() { cfg.ConnectRetries = retries },
		},
	}
}

func applyOverrides(cmd *cobra.Command, cfg *config.Profiler) error {
	rules := buildOverrideRules(cmd, cfg)
	for _, r := range rules {
		if r.changed() && r.validate != nil {
			if err := r.validate(); err != nil {
				return fmt.Errorf("%s: %w", r.name, err)
			}
		}
	}
	for _, r := range rules {
		if r.changed() {
			r.apply()
		}
	}
	return nil
}
