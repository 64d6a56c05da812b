package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgPath string

	logLevel      string
	prettyLogging bool
	dsn           string
	driverName    string
	concurrency   int
	exportPath    string
	httpAddr      string
	maxMonitors   int
	retries       uint64
)

var rootCmd = &cobra.Command{
	Use:   "pgprof run --config `path-to-config` --workload `path-to-workload`",
	Short: "pgprof",
	Long:  "Statement profiler for PostgreSQL clients",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (.yaml, .toml or .json)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level")
	rootCmd.PersistentFlags().BoolVarP(&prettyLogging, "pretty-log", "P", false, "write logs in human readable format")

	runCmd.Flags().StringVar(&dsn, "dsn", "", "connection string of the database to replay against")
	runCmd.Flags().StringVar(&driverName, "driver", "", "client driver: postgres or pgx")
	runCmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "statements in flight")
	runCmd.Flags().StringVarP(&exportPath, "export", "o", "", "file to export statistics to")
	runCmd.Flags().StringVar(&httpAddr, "http-addr", "", "address of the admin HTTP server")
	runCmd.Flags().Uint64Var(&retries, "connect-retries", 0, "extra attempts at the first ping")
	runCmd.Flags().IntVar(&maxMonitors, "max-monitors", 0, "maximum number of statement monitors")
	runCmd.Flags().StringVarP(&workloadPath, "workload", "w", "", "workload file to replay")
	runCmd.Flags().IntVar(&repeat, "repeat", 1, "how many times to replay the workload")
	_ = runCmd.MarkFlagRequired("workload")

	mergeCmd.Flags().StringVarP(&mergeOut, "output", "o", "", "file to write the merged export to (stdout when empty)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(redactCmd)
}

func main() {
	Execute()
}
