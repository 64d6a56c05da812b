package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pg-sharding/pgprof/pkg/config"
	"github.com/pg-sharding/pgprof/pkg/profiler"
	"github.com/pg-sharding/pgprof/pkg/proflog"
	"github.com/pg-sharding/pgprof/pkg/workload"
)

var (
	workloadPath string
	repeat       int
)

const shutdownTimeout = 30 * time.Second

func loadConfig(cmd *cobra.Command) (config.Profiler, error) {
	cfg := config.Default()
	if cfgPath != "" {
		if _, err := config.LoadProfilerCfg(cfgPath); err != nil {
			return cfg, err
		}
		cfg = *config.ProfilerConfig()
	}
	if err := applyOverrides(cmd, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "replay a workload through the profiler and export the statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		proflog.ReloadLogger(cfg.LogFile, cfg.PrettyLogging)
		if err := proflog.UpdateZeroLogLevel(cfg.LogLevel); err != nil {
			return err
		}
		proflog.Zero.Info().Str("config", cfg.String()).Msg("running config")

		qs, err := workload.Load(workloadPath)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, err := profiler.New(&cfg, profiler.WithLogger(proflog.Zero))
		if err != nil {
			return errors.Wrap(err, "profiler failed to start")
		}

		var replayErr error
		runner, err := p.Runner(ctx)
		if err != nil {
			replayErr = err
		} else {
			started := time.Now()
			res, err := workload.Replay(ctx, runner, qs, cfg.Concurrency, repeat, proflog.Zero)
			replayErr = err
			proflog.Zero.Info().
				Int64("executed", res.Executed).
				Int64("failed", res.Failed).
				Dur("elapsed", time.Since(started)).
				Msg("workload replayed")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := p.Shutdown(shutdownCtx); err != nil {
			proflog.Zero.Error().Err(err).Msg("shutdown")
			if replayErr == nil {
				replayErr = err
			}
		}
		return replayErr
	},
}
