// Package report renders the gold layer as a terminal table.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"punktlich/internal/departures"
)

// Punctuality thresholds for colouring, in percent.
const (
	goodPunctuality = 90.0
	fairPunctuality = 75.0
)

type Reporter struct {
	useColor bool
}

func New(useColor bool) *Reporter {
	return &Reporter{useColor: useColor}
}

// Gold writes rows as a table followed by a totals line.
func (r *Reporter) Gold(w io.Writer, rows []departures.Gold) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No gold rows yet. Run `punktlich run` after ingesting departures.")
		return err
	}

	var buf strings.Builder
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Service", "Hour", "Day", "Trains", "Delayed", "Avg delay", "Punctuality", "Disruptions"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, g := range rows {
		table.Append([]string{
			g.ServiceType,
			hour(g.ScheduledHour),
			orDash(g.DayOfWeek),
			strconv.FormatInt(g.TotalTrains, 10),
			strconv.FormatInt(g.DelayedTrains, 10),
			fmt.Sprintf("%.1f min", g.AvgDelayMinutes),
			r.punctuality(g.PunctualityRate),
			fmt.Sprintf("%d (%.1f%%)", g.TotalDisruptions, g.DisruptionRate),
		})
	}
	table.Render()

	t := departures.Summarize(rows)
	fmt.Fprintf(&buf, "\n%d trains, %d delayed, punctuality %s, %d disruptions (%.1f%%)\n",
		t.Trains, t.Delayed, r.punctuality(t.PunctualityRate), t.Disruptions, t.DisruptionRate)

	_, err := io.WriteString(w, buf.String())
	return err
}

func (r *Reporter) punctuality(rate float64) string {
	s := fmt.Sprintf("%.1f%%", rate)
	if !r.useColor {
		return s
	}
	switch {
	case rate >= goodPunctuality:
		return color.GreenString(s)
	case rate >= fairPunctuality:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

func hour(h *int) string {
	if h == nil {
		return "-"
	}
	return fmt.Sprintf("%02d:00", *h)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
