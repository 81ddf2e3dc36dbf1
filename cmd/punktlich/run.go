package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hako/durafmt"
	"github.com/spf13/cobra"

	"punktlich/internal/db"
	"punktlich/internal/departures"
	"punktlich/internal/export"
	"punktlich/internal/pipeline"
	"punktlich/internal/publisher"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Rebuild the silver and gold layers from bronze",
	Long: `Read every bronze Parquet file, rebuild silver.departures and
gold.agg_punctuality in one transaction, then publish a run event and mirror
gold to Postgres when NATS_URL and EXPORT_DATABASE_URL are set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		res, err := runPipeline(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d bronze files, %d bronze rows, %d silver rows, %d gold rows in %s\n",
			res.RunID, res.BronzeFiles, res.BronzeRows, res.SilverRows, res.GoldRows,
			durafmt.Parse(res.Duration.Round(time.Millisecond)).String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// runPipeline rebuilds silver and gold, records metrics and fans the result out
// to the optional NATS and Postgres sinks.
func runPipeline(ctx context.Context) (pipeline.Result, error) {
	conn, err := db.Open(cfg.DuckDBPath)
	if err != nil {
		return pipeline.Result{}, err
	}
	defer conn.Close()

	res, err := pipeline.NewRunner(conn, cfg.BronzeDir).Run(ctx)
	if err != nil {
		mcol.RunFailed()
		return res, fmt.Errorf("pipeline: %w", err)
	}
	mcol.RunSucceeded(res.BronzeFiles, res.BronzeRows, res.SilverRows, res.GoldRows, res.Duration)

	gold, err := db.FetchGold(ctx, conn, nil)
	if err != nil {
		return res, err
	}

	if cfg.NATSURL != "" {
		publishRun(res, departures.Summarize(gold))
	}
	if cfg.ExportDatabaseURL != "" {
		if err := mirrorGold(ctx, gold); err != nil {
			return res, err
		}
	}
	return res, nil
}

// publishRun announces a finished run. Publish failures are logged only.
func publishRun(res pipeline.Result, totals departures.Totals) {
	pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
	if err != nil {
		log.Printf("nats error: %v", err)
		return
	}
	defer pub.Close()

	msg := publisher.RunCompletedMessage{
		RunID:           res.RunID.String(),
		Station:         cfg.StationName,
		FinishedAt:      res.StartedAt.Add(res.Duration),
		DurationMs:      res.Duration.Milliseconds(),
		BronzeFiles:     res.BronzeFiles,
		BronzeRows:      res.BronzeRows,
		SilverRows:      res.SilverRows,
		GoldRows:        res.GoldRows,
		PunctualityRate: totals.PunctualityRate,
		DisruptionRate:  totals.DisruptionRate,
	}
	if err := pub.PublishRunCompleted(msg); err != nil {
		log.Printf("nats publish error: %v", err)
	}
}

func mirrorGold(ctx context.Context, gold []departures.Gold) error {
	pg, err := db.OpenPostgres(cfg.ExportDatabaseURL)
	if err != nil {
		return fmt.Errorf("open export database: %w", err)
	}
	defer pg.Close()
	if err := db.Ping(ctx, pg); err != nil {
		return fmt.Errorf("ping export database %s: %w", db.RedactDSN(cfg.ExportDatabaseURL), err)
	}
	if err := export.NewPostgresMirror(pg).Mirror(ctx, gold); err != nil {
		return fmt.Errorf("mirror gold: %w", err)
	}
	log.Printf("mirrored %d gold rows to %s", len(gold), db.RedactDSN(cfg.ExportDatabaseURL))
	return nil
}
