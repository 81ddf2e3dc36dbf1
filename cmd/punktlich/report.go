package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/hako/durafmt"
	"github.com/spf13/cobra"

	"punktlich/internal/bronze"
	"punktlich/internal/db"
	"punktlich/internal/report"
)

var (
	reportServices []string
	reportNoColor  bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the gold punctuality table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		conn, err := db.OpenReadOnly(cfg.DuckDBPath)
		if err != nil {
			return err
		}
		defer conn.Close()

		rows, err := db.FetchGold(ctx, conn, reportServices)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if err := report.New(!reportNoColor && !color.NoColor).Gold(out, rows); err != nil {
			return err
		}

		stats, err := bronze.Stats(cfg.BronzeDir)
		if err != nil {
			return err
		}
		if !stats.Oldest.IsZero() {
			fmt.Fprintf(out, "bronze: %d files, %d rows, covering %s\n",
				stats.Files, stats.Rows, durafmt.Parse(stats.Newest.Sub(stats.Oldest)).LimitFirstN(2).String())
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringSliceVar(&reportServices, "service", nil, "limit to service types (repeatable)")
	reportCmd.Flags().BoolVar(&reportNoColor, "no-color", false, "disable coloured output")
	rootCmd.AddCommand(reportCmd)
}
