package departures

import "time"

// Bronze is one raw departure row as written to the bronze layer.
// Field order and names match the Parquet schema read by the silver model.
type Bronze struct {
	TripID         string `parquet:"trip_id"`
	Train          string `parquet:"train"`
	Destination    string `parquet:"destination"`
	Path           string `parquet:"path"`
	ScheduledTime  string `parquet:"scheduled_time"` // "2006-01-02 15:04:05", raw API value when unparseable
	Platform       string `parquet:"platform,optional"`
	Delay          *int32 `parquet:"delay,optional"` // minutes
	ServiceNotices string `parquet:"service_notices,optional"`
}

// Silver is one deduplicated departure from silver.departures.
type Silver struct {
	TripID         string     `db:"trip_id" json:"trip_id"`
	Train          string     `db:"train" json:"train"`
	Destination    string     `db:"destination" json:"destination"`
	Path           string     `db:"path" json:"path"`
	ScheduledTime  *time.Time `db:"scheduled_time" json:"scheduled_time"` // nil when the raw value failed to cast
	Platform       *string    `db:"platform" json:"platform"`
	Delay          int        `db:"delay" json:"delay"`
	ServiceNotices *string    `db:"service_notices" json:"service_notices"`
	ServiceType    string     `db:"service_type" json:"service_type"`
	ScheduledHour  *int       `db:"scheduled_hour" json:"scheduled_hour"`
	DayOfWeek      *string    `db:"day_of_week" json:"day_of_week"`
	Status         string     `db:"status" json:"status"`
	HasDisruption  bool       `db:"has_disruption" json:"has_disruption"`
	SourceFile     string     `db:"source_file" json:"source_file"`
}

// Gold is one aggregate row from gold.agg_punctuality.
type Gold struct {
	ServiceType      string  `db:"service_type" json:"service_type"`
	ScheduledHour    *int    `db:"scheduled_hour" json:"scheduled_hour"`
	DayOfWeek        *string `db:"day_of_week" json:"day_of_week"`
	TotalTrains      int64   `db:"total_trains" json:"total_trains"`
	DelayedTrains    int64   `db:"delayed_trains" json:"delayed_trains"`
	AvgDelayMinutes  float64 `db:"avg_delay_minutes" json:"avg_delay_minutes"`
	PunctualityRate  float64 `db:"punctuality_rate" json:"punctuality_rate"`
	DelayRate        float64 `db:"delay_rate" json:"delay_rate"`
	TotalDisruptions int64   `db:"total_disruptions" json:"total_disruptions"`
	DisruptionRate   float64 `db:"disruption_rate" json:"disruption_rate"`
}

// Totals summarises a set of gold rows weighted by train count.
type Totals struct {
	Trains          int64
	Delayed         int64
	Disruptions     int64
	PunctualityRate float64
	DelayRate       float64
	DisruptionRate  float64
}
