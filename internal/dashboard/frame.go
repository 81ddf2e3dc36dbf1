package dashboard

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"

	"punktlich/internal/departures"
)

// goldFrame lays gold rows out as a dataframe in table column order.
func goldFrame(rows []departures.Gold) dataframe.DataFrame {
	n := len(rows)
	service := make([]string, n)
	hour := make([]string, n)
	day := make([]string, n)
	total := make([]int, n)
	delayed := make([]int, n)
	avgDelay := make([]float64, n)
	punctuality := make([]float64, n)
	delayRate := make([]float64, n)
	disruptions := make([]int, n)
	disruptionRate := make([]float64, n)

	for i, r := range rows {
		service[i] = r.ServiceType
		if r.ScheduledHour != nil {
			hour[i] = strconv.Itoa(*r.ScheduledHour)
		}
		if r.DayOfWeek != nil {
			day[i] = *r.DayOfWeek
		}
		total[i] = int(r.TotalTrains)
		delayed[i] = int(r.DelayedTrains)
		avgDelay[i] = r.AvgDelayMinutes
		punctuality[i] = r.PunctualityRate
		delayRate[i] = r.DelayRate
		disruptions[i] = int(r.TotalDisruptions)
		disruptionRate[i] = r.DisruptionRate
	}

	return dataframe.New(
		series.New(service, series.String, "service_type"),
		series.New(hour, series.String, "scheduled_hour"),
		series.New(day, series.String, "day_of_week"),
		series.New(total, series.Int, "total_trains"),
		series.New(delayed, series.Int, "delayed_trains"),
		series.New(avgDelay, series.Float, "avg_delay_minutes"),
		series.New(punctuality, series.Float, "punctuality_rate"),
		series.New(delayRate, series.Float, "delay_rate"),
		series.New(disruptions, series.Int, "total_disruptions"),
		series.New(disruptionRate, series.Float, "disruption_rate"),
	)
}

// Summary holds the headline metrics above the chart.
type Summary struct {
	MeanPunctuality float64 `json:"mean_punctuality_rate"`
	MeanDelay       float64 `json:"mean_avg_delay_minutes"`
	Disruptions     int64   `json:"total_disruptions"`
	Rows            int     `json:"rows"`
}

// summarize averages the rates over gold rows, unweighted, and sums disruptions.
func summarize(df dataframe.DataFrame) Summary {
	if df.Nrow() == 0 {
		return Summary{}
	}
	var disruptions float64
	for _, v := range df.Col("total_disruptions").Float() {
		disruptions += v
	}
	return Summary{
		MeanPunctuality: round1(df.Col("punctuality_rate").Mean()),
		MeanDelay:       round1(df.Col("avg_delay_minutes").Mean()),
		Disruptions:     int64(disruptions),
		Rows:            df.Nrow(),
	}
}

func round1(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Round(v*10) / 10
}

// ChartSeries is one line of the punctuality-by-hour chart.
type ChartSeries struct {
	Name  string    `json:"name"`
	Hours []int     `json:"x"`
	Rates []float64 `json:"y"`
}

// hourlySeries folds the day-of-week dimension away, weighting by train count,
// and returns one series per service type ordered by name.
func hourlySeries(rows []departures.Gold) []ChartSeries {
	type acc struct{ onTime, total int64 }
	byService := map[string]map[int]*acc{}
	for _, r := range rows {
		if r.ScheduledHour == nil || r.TotalTrains == 0 {
			continue
		}
		hours, ok := byService[r.ServiceType]
		if !ok {
			hours = map[int]*acc{}
			byService[r.ServiceType] = hours
		}
		a, ok := hours[*r.ScheduledHour]
		if !ok {
			a = &acc{}
			hours[*r.ScheduledHour] = a
		}
		a.onTime += r.TotalTrains - r.DelayedTrains
		a.total += r.TotalTrains
	}

	out := make([]ChartSeries, 0, len(byService))
	for name, hours := range byService {
		cs := ChartSeries{Name: name}
		keys := make([]int, 0, len(hours))
		for h := range hours {
			keys = append(keys, h)
		}
		sort.Ints(keys)
		for _, h := range keys {
			cs.Hours = append(cs.Hours, h)
			cs.Rates = append(cs.Rates, departures.Rate(hours[h].onTime, hours[h].total))
		}
		out = append(out, cs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

const exportSheet = "agg_punctuality"

// writeXLSX writes the frame as a single-sheet workbook with a header row.
func writeXLSX(w io.Writer, df dataframe.DataFrame) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}

	names := df.Names()
	for i, name := range names {
		if err := setCell(f, exportSheet, i+1, 1, name); err != nil {
			return err
		}
	}
	for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
		for colIdx, name := range names {
			if err := setCell(f, exportSheet, colIdx+1, rowIdx+2, df.Col(name).Val(rowIdx)); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// setCell writes v at the 1-based (col, row) position of sheet.
func setCell(f *excelize.File, sheet string, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell (%d,%d): %w", col, row, err)
	}
	if err := f.SetCellValue(sheet, cell, v); err != nil {
		return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
	}
	return nil
}
