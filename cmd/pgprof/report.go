package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pg-sharding/pgprof/pkg/monitor"
	"github.com/pg-sharding/pgprof/pkg/statistics"
)

func readExport(path string) ([]monitor.Stat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return statistics.ReadStats(f)
}

func printStats(w io.Writer, stats []monitor.Stat) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Hits\tAvg ms\tTotal ms\tMin ms\tMax ms\t\tLabel")
	for _, st := range stats {
		avg := "-"
		if a := st.Avg(); !math.IsNaN(a) {
			avg = fmt.Sprintf("%.3f", a)
		}
		fmt.Fprintf(tw, "%d\t%s\t%.3f\t%.3f\t%.3f\t\t%s\n",
			st.Hits, avg, st.TotalMillis(), st.MinMillis(), st.MaxMillis(), st.Label)
	}
	return tw.Flush()
}

var reportCmd = &cobra.Command{
	Use:   "report export.csv",
	Short: "print an export sorted by total time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := readExport(args[0])
		if err != nil {
			return err
		}
		monitor.SortStats(stats)
		return printStats(cmd.OutOrStdout(), stats)
	},
}
