package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	PipelineRuns *prometheus.CounterVec // outcome label: success|failure

	BronzeFiles      prometheus.Gauge
	BronzeRows       prometheus.Gauge
	SilverRows       prometheus.Gauge
	GoldRows         prometheus.Gauge
	LastRunTimestamp prometheus.Gauge

	DeparturesIngested prometheus.Counter
	IngestSkipped      prometheus.Counter
	IngestLimit        prometheus.Gauge

	DashboardRequests *prometheus.CounterVec // route, status labels

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	RunDuration     prometheus.Histogram
	PublishDuration prometheus.Histogram
}

func NewCollector(ingestLimit int) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "punktlich_pipeline_runs_total",
			Help: "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		BronzeFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "punktlich_bronze_files",
			Help: "Bronze files read by the last pipeline run.",
		}),
		BronzeRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "punktlich_bronze_rows",
			Help: "Bronze rows read by the last pipeline run.",
		}),
		SilverRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "punktlich_silver_rows",
			Help: "Rows in silver.departures after the last pipeline run.",
		}),
		GoldRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "punktlich_gold_rows",
			Help: "Rows in gold.agg_punctuality after the last pipeline run.",
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "punktlich_last_successful_run_timestamp_seconds",
			Help: "Unix time of the last successful pipeline run.",
		}),
		DeparturesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "punktlich_departures_ingested_total",
			Help: "Departures written to bronze.",
		}),
		IngestSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "punktlich_ingest_skipped_total",
			Help: "Ingestion attempts skipped because the silver limit was reached.",
		}),
		IngestLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "punktlich_ingest_limit",
			Help: "Silver row count at which ingestion stops (0 = unlimited).",
		}),
		DashboardRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "punktlich_dashboard_requests_total",
			Help: "Dashboard HTTP requests by route and status.",
		}, []string{"route", "status"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "punktlich_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "punktlich_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "punktlich_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "punktlich_pipeline_run_duration_seconds",
			Help:    "Duration of silver and gold materialisation.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "punktlich_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	// Register
	reg.MustRegister(
		c.PipelineRuns,
		c.BronzeFiles, c.BronzeRows, c.SilverRows, c.GoldRows, c.LastRunTimestamp,
		c.DeparturesIngested, c.IngestSkipped, c.IngestLimit,
		c.DashboardRequests,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.RunDuration, c.PublishDuration,
	)

	c.IngestLimit.Set(float64(ingestLimit))

	return c
}

// RunSucceeded records the row counts of a finished pipeline run.
func (c *Collector) RunSucceeded(bronzeFiles int, bronzeRows, silverRows, goldRows int64, d time.Duration) {
	c.PipelineRuns.WithLabelValues("success").Inc()
	c.BronzeFiles.Set(float64(bronzeFiles))
	c.BronzeRows.Set(float64(bronzeRows))
	c.SilverRows.Set(float64(silverRows))
	c.GoldRows.Set(float64(goldRows))
	c.RunDuration.Observe(d.Seconds())
	c.LastRunTimestamp.SetToCurrentTime()
}

func (c *Collector) RunFailed() { c.PipelineRuns.WithLabelValues("failure").Inc() }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
