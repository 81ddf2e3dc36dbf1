package departures

import (
	"fmt"
	"math"
	"strings"
)

// Punctuality status labels.
const (
	OnTime     = "On Time"
	SmallDelay = "Small Delay"
	Late       = "Late"
)

// SmallDelayLimit is the first delay in minutes that counts as Late.
const SmallDelayLimit = 6

// Service type labels.
const (
	LongDistance = "Long Distance"
	Regional     = "Regional"
	SBahn        = "S-Bahn"
	Bus          = "Bus"
	Other        = "Other"
)

// serviceClasses maps train name prefixes to service types.
// Prefixes not listed here fall into Other.
var serviceClasses = []struct {
	serviceType string
	prefixes    []string
}{
	{LongDistance, []string{"ICE", "IC", "EC", "ECE", "EN", "NJ", "FLX", "RJ", "RJX", "TGV"}},
	{Regional, []string{"RE", "RB", "IRE", "FEX", "RS"}},
	{SBahn, []string{"S"}},
	{Bus, []string{"BUS", "SEV"}},
}

var disruptionMarkers = []string{"störung", "stoerung"}

// StatusOf classifies a delay in minutes.
func StatusOf(delay int) string {
	switch {
	case delay <= 0:
		return OnTime
	case delay < SmallDelayLimit:
		return SmallDelay
	default:
		return Late
	}
}

// ServiceTypeOf derives the service category from a train name such as "ICE 147" or "S5".
func ServiceTypeOf(train string) string {
	prefix := trainPrefix(train)
	for _, c := range serviceClasses {
		for _, p := range c.prefixes {
			if p == prefix {
				return c.serviceType
			}
		}
	}
	return Other
}

// IsDisruption reports whether a "|"-joined notice list flags a service fault.
func IsDisruption(notices string) bool {
	l := strings.ToLower(notices)
	for _, m := range disruptionMarkers {
		if strings.Contains(l, m) {
			return true
		}
	}
	return false
}

// trainPrefix returns the leading ASCII letters of the trimmed name, upper-cased.
func trainPrefix(train string) string {
	train = strings.TrimSpace(train)
	end := 0
	for end < len(train) {
		c := train[end]
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			break
		}
		end++
	}
	return strings.ToUpper(train[:end])
}

// StatusSQL renders StatusOf as a SQL CASE over the given integer column.
func StatusSQL(col string) string {
	return fmt.Sprintf("CASE WHEN %s <= 0 THEN '%s' WHEN %s < %d THEN '%s' ELSE '%s' END",
		col, OnTime, col, SmallDelayLimit, SmallDelay, Late)
}

// ServiceTypeSQL renders ServiceTypeOf as a SQL CASE over the given text column.
func ServiceTypeSQL(col string) string {
	prefix := fmt.Sprintf("upper(regexp_extract(trim(%s), '^[A-Za-z]+', 0))", col)
	var b strings.Builder
	b.WriteString("CASE")
	for _, c := range serviceClasses {
		quoted := make([]string, len(c.prefixes))
		for i, p := range c.prefixes {
			quoted[i] = "'" + p + "'"
		}
		fmt.Fprintf(&b, " WHEN %s IN (%s) THEN '%s'", prefix, strings.Join(quoted, ", "), c.serviceType)
	}
	fmt.Fprintf(&b, " ELSE '%s' END", Other)
	return b.String()
}

// DisruptionSQL renders IsDisruption as a SQL boolean expression over the given text column.
func DisruptionSQL(col string) string {
	return fmt.Sprintf("COALESCE(regexp_matches(lower(%s), '%s'), false)", col, strings.Join(disruptionMarkers, "|"))
}

// Rate returns part/total as a percentage rounded to one decimal; 0 when total is 0.
func Rate(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(1000*float64(part)/float64(total)) / 10
}

// Summarize totals gold rows, weighting rates by train count.
func Summarize(rows []Gold) Totals {
	var t Totals
	for _, r := range rows {
		t.Trains += r.TotalTrains
		t.Delayed += r.DelayedTrains
		t.Disruptions += r.TotalDisruptions
	}
	t.PunctualityRate = Rate(t.Trains-t.Delayed, t.Trains)
	t.DelayRate = Rate(t.Delayed, t.Trains)
	t.DisruptionRate = Rate(t.Disruptions, t.Trains)
	return t
}
