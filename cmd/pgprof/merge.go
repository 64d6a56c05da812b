package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pg-sharding/pgprof/pkg/monitor"
	"github.com/pg-sharding/pgprof/pkg/statistics"
)

var mergeOut string

var mergeCmd = &cobra.Command{
	Use:   "merge -o out.csv a.csv b.csv ...",
	Short: "add up several exports",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lists := make([][]monitor.Stat, 0, len(args))
		for _, path := range args {
			stats, err := readExport(path)
			if err != nil {
				return errors.Wrapf(err, "read %s", path)
			}
			lists = append(lists, stats)
		}
		merged := statistics.MergeStats(lists...)

		if mergeOut == "" {
			return statistics.WriteStats(cmd.OutOrStdout(), merged)
		}
		f, err := os.Create(mergeOut)
		if err != nil {
			return err
		}
		if err := statistics.WriteStats(f, merged); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	},
}
