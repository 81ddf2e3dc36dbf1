package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"punktlich/internal/scheduler"
)

var (
	scheduleSpec  string
	scheduleWatch bool
	scheduleNow   bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run ingestion and the pipeline on a schedule",
	Long: `Run ingest followed by the pipeline on a cron schedule (default SCHEDULE,
"@every 30m"). With --watch the pipeline also reruns whenever a new bronze
file appears, for batches written by another process. Runs never overlap.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		spec := cfg.Schedule
		override(cmd.Flags(), "cron", &spec, scheduleSpec)
		watch := cfg.WatchBronze || scheduleWatch

		serveMetrics(ctx)

		s := scheduler.New(spec, ingestAndRun)
		if err := s.Start(ctx); err != nil {
			return err
		}
		defer s.Stop()

		if watch {
			if err := os.MkdirAll(cfg.BronzeDir, 0o755); err != nil {
				return fmt.Errorf("create bronze dir: %w", err)
			}
			if err := s.Watch(ctx, cfg.BronzeDir, pipelineJob); err != nil {
				return fmt.Errorf("watch %s: %w", cfg.BronzeDir, err)
			}
		}
		if scheduleNow {
			if err := s.RunNow(ctx); err != nil {
				log.Printf("initial run failed: %v", err)
			}
		}

		<-ctx.Done()
		log.Println("shutdown complete")
		return nil
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleSpec, "cron", "", "five-field cron expression or descriptor such as @every 30m (overrides SCHEDULE)")
	scheduleCmd.Flags().BoolVar(&scheduleWatch, "watch", false, "rerun the pipeline when new bronze files appear")
	scheduleCmd.Flags().BoolVar(&scheduleNow, "now", false, "run once immediately")
	rootCmd.AddCommand(scheduleCmd)
}

// ingestAndRun is the scheduled job. After a non-empty batch it rebuilds silver
// and gold itself unless the bronze watcher will.
func ingestAndRun(ctx context.Context) error {
	n, err := ingest(ctx, false)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	if cfg.WatchBronze || scheduleWatch {
		// the watcher picks the new file up
		return nil
	}
	_, err = runPipeline(ctx)
	return err
}

func pipelineJob(ctx context.Context) error {
	_, err := runPipeline(ctx)
	return err
}
