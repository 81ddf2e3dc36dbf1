package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"punktlich/internal/config"
	"punktlich/internal/metrics"
)

var (
	cfg  *config.Config
	mcol *metrics.Collector

	dbPathFlag    string
	bronzeDirFlag string
)

var rootCmd = &cobra.Command{
	Use:   "punktlich",
	Short: "Train departure punctuality pipeline for Berlin Hbf",
	Long: `punktlich ingests departures from the Deutsche Bahn Timetables API into
Parquet bronze files, rebuilds the silver and gold layers in DuckDB and serves
a punctuality dashboard over the result.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		override(cmd.Flags(), "db", &c.DuckDBPath, dbPathFlag)
		override(cmd.Flags(), "bronze-dir", &c.BronzeDir, bronzeDirFlag)
		cfg = c
		mcol = metrics.NewCollector(cfg.IngestLimit)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "DuckDB file (overrides DUCKDB_PATH)")
	rootCmd.PersistentFlags().StringVar(&bronzeDirFlag, "bronze-dir", "", "bronze Parquet directory (overrides BRONZE_DIR)")
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// serveMetrics starts the standalone metrics server when METRICS_ADDR is set
// and shuts it down when ctx ends.
func serveMetrics(ctx context.Context) {
	if cfg.MetricsAddr == "" {
		return
	}
	srv := mcol.Serve(cfg.MetricsAddr)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// override replaces *dst with v when the named flag was set explicitly.
func override(fs *pflag.FlagSet, name string, dst *string, v string) {
	if fs.Changed(name) {
		*dst = v
	}
}
