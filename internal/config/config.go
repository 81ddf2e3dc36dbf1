package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	DataDir      string
	BronzeDir    string
	DuckDBPath   string
	HeartbeatLog string
	IngestLimit  int

	StationID        string
	StationName      string
	DBClientID       string
	DBAPIKey         string
	TimetableBaseURL string
	PlanPause        time.Duration

	DashboardAddr string
	CacheTTL      time.Duration
	CSRFKey       string
	GitHubToken   string
	GitHubRepo    string
	GitHubAPIURL  string

	HFToken       string
	HFAPIURL      string
	SpaceManifest string

	NATSURL         string
	NATSSubject     string
	LogNATSSubjects bool
	MetricsAddr     string

	ExportDatabaseURL string

	Schedule    string
	WatchBronze bool

	Location *time.Location
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.DataDir = getenvDefault("DATA_DIR", "data")
	cfg.BronzeDir = getenvDefault("BRONZE_DIR", filepath.Join(cfg.DataDir, "bronze"))
	cfg.DuckDBPath = firstNonEmpty(os.Getenv("DUCKDB_PATH"), os.Getenv("DB_PATH"), filepath.Join(cfg.DataDir, "punktlich.duckdb"))
	cfg.HeartbeatLog = getenvDefault("HEARTBEAT_LOG", filepath.Join("logs", "heartbeat.log"))

	// Ingestion stops once silver holds this many departures; 0 disables the limit.
	if v := os.Getenv("INGEST_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid INGEST_LIMIT: %q", v)
		}
		cfg.IngestLimit = n
	} else {
		cfg.IngestLimit = 500
	}

	// Berlin Hbf
	cfg.StationID = getenvDefault("STATION_ID", "8011160")
	cfg.StationName = getenvDefault("STATION_NAME", "Berlin Hbf")
	cfg.DBClientID = os.Getenv("DB_CLIENT_ID")
	cfg.DBAPIKey = os.Getenv("DB_API_KEY")
	cfg.TimetableBaseURL = strings.TrimRight(getenvDefault("TIMETABLE_BASE_URL",
		"https://apis.deutschebahn.com/db-api-marketplace/apis/timetables/v1"), "/")

	if v := os.Getenv("PLAN_PAUSE_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			return nil, fmt.Errorf("invalid PLAN_PAUSE_MS: %q", v)
		}
		cfg.PlanPause = time.Duration(ms) * time.Millisecond
	} else {
		cfg.PlanPause = 500 * time.Millisecond
	}

	cfg.DashboardAddr = firstNonEmpty(os.Getenv("DASHBOARD_ADDR"), portAddr(os.Getenv("PORT")), ":7860")

	if v := os.Getenv("DASHBOARD_CACHE_TTL_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec < 0 {
			return nil, fmt.Errorf("invalid DASHBOARD_CACHE_TTL_SEC: %q", v)
		}
		cfg.CacheTTL = time.Duration(sec) * time.Second
	} else {
		cfg.CacheTTL = 30 * time.Second
	}

	cfg.CSRFKey = os.Getenv("CSRF_KEY")
	cfg.GitHubToken = firstNonEmpty(os.Getenv("GH_TOKEN"), os.Getenv("GITHUB_TOKEN"))
	cfg.GitHubRepo = getenvDefault("GITHUB_REPO", "nde97/punktlich-data-platform")
	cfg.GitHubAPIURL = strings.TrimRight(getenvDefault("GITHUB_API_URL", "https://api.github.com"), "/")

	cfg.HFToken = os.Getenv("HF_TOKEN")
	cfg.HFAPIURL = strings.TrimRight(getenvDefault("HF_API_URL", "https://huggingface.co"), "/")
	cfg.SpaceManifest = getenvDefault("SPACE_MANIFEST", filepath.Join("deploy", "space.yaml"))

	// Empty NATS_URL disables run events.
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubject = getenvDefault("NATS_SUBJECT", "punktlich.pipeline.completed")
	cfg.LogNATSSubjects = parseBool(os.Getenv("LOG_NATS_SUBJECTS"))

	// Metrics listen address (e.g., ":9102"). Empty disables the standalone metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	cfg.ExportDatabaseURL = os.Getenv("EXPORT_DATABASE_URL")

	cfg.Schedule = getenvDefault("SCHEDULE", "@every 30m")
	cfg.WatchBronze = parseBool(os.Getenv("WATCH_BRONZE"))

	// Time zone of the timetable API's hour slots
	tzName := getenvDefault("TZ", "Europe/Berlin")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TZ: %v", err)
	}
	cfg.Location = loc

	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// portAddr turns a bare PORT value into a listen address.
func portAddr(port string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		return ""
	}
	return ":" + port
}
