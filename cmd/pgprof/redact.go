package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pg-sharding/pgprof/pkg/redact"
)

var redactCmd = &cobra.Command{
	Use:   "redact \"<sql>\"",
	Short: "print a statement with password literals masked",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), redact.SQL(strings.Join(args, " ")))
		return err
	},
}
