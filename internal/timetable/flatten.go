package timetable

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"punktlich/internal/departures"
)

const (
	apiTimeLayout   = "0601021504"
	bronzeLayout    = "2006-01-02 15:04:05"
	defaultPlatform = "--"
	unknownTrain    = "Unknown"
)

// PlanMap maps a stop id to the train name known from the planned timetable.
type PlanMap map[string]string

// addPlan records the names of every stop in a plan document.
func (m PlanMap) addPlan(tt *Timetable) {
	for _, s := range tt.Stops {
		m[s.ID] = planName(s)
	}
}

func planName(s Stop) string {
	ev := s.Departure
	if ev == nil {
		ev = s.Arrival
	}
	if ev != nil && ev.Line != "" {
		return ev.Line
	}
	if name := labelName(s.TripLabel); name != "" {
		return name
	}
	id := s.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return "ID:" + id
}

func labelName(tl *TripLabel) string {
	switch {
	case tl == nil || tl.Category == "":
		return ""
	case tl.Number != "":
		return tl.Category + " " + tl.Number
	default:
		return tl.Category
	}
}

// Flatten turns the departures of a change document into bronze rows. Stops
// without a departure event are skipped.
func Flatten(tt *Timetable, plan PlanMap, station string) []departures.Bronze {
	var out []departures.Bronze
	for _, s := range tt.Stops {
		dp := s.Departure
		if dp == nil {
			continue
		}
		depPath := dp.path()
		delay := int32(DelayMinutes(dp.PlannedTime, dp.ChangedTime))
		platform := dp.PlannedTrack
		if platform == "" {
			platform = defaultPlatform
		}
		scheduled := dp.ChangedTime
		if scheduled == "" {
			scheduled = dp.PlannedTime
		}
		out = append(out, departures.Bronze{
			TripID:         s.ID,
			Train:          trainName(s, dp, plan),
			Destination:    destination(depPath, station),
			Path:           routePath(s.Arrival.path(), depPath, station),
			ScheduledTime:  FormatTime(scheduled),
			Platform:       platform,
			Delay:          &delay,
			ServiceNotices: notices(s.Messages, dp.Messages),
		})
	}
	return out
}

// trainName resolves line, then category and number of the change, then the
// plan map, then the trip label.
func trainName(s Stop, dp *Event, plan PlanMap) string {
	if dp.Line != "" {
		return dp.Line
	}
	if dp.Category != "" && dp.Number != "" {
		return dp.Category + " " + dp.Number
	}
	if name, ok := plan[s.ID]; ok {
		return name
	}
	if name := labelName(s.TripLabel); name != "" {
		return name
	}
	return unknownTrain
}

func routePath(arrival, departure, station string) string {
	switch {
	case arrival == "" && departure == "":
		return station
	case arrival == "":
		return station + "|" + departure
	case departure == "":
		return arrival + "|" + station
	default:
		return arrival + "|" + station + "|" + departure
	}
}

func destination(depPath, station string) string {
	parts := strings.Split(depPath, "|")
	if last := parts[len(parts)-1]; last != "" {
		return last
	}
	return station
}

// notices joins the distinct message categories of a stop and its departure.
func notices(groups ...[]Message) string {
	seen := map[string]struct{}{}
	var cats []string
	for _, msgs := range groups {
		for _, m := range msgs {
			if m.Category == "" {
				continue
			}
			if _, ok := seen[m.Category]; ok {
				continue
			}
			seen[m.Category] = struct{}{}
			cats = append(cats, m.Category)
		}
	}
	sort.Strings(cats)
	return strings.Join(cats, "|")
}

// DelayMinutes is actual minus planned in minutes, 0 when either is missing
// or malformed.
func DelayMinutes(planned, actual string) int {
	if planned == "" || actual == "" {
		return 0
	}
	p, err := time.Parse(apiTimeLayout, planned)
	if err != nil {
		return 0
	}
	a, err := time.Parse(apiTimeLayout, actual)
	if err != nil {
		return 0
	}
	return int(a.Sub(p) / time.Minute)
}

// FormatTime renders a YYMMDDHHMM value as "YYYY-MM-DD HH:MM:SS". Anything
// else is returned unchanged.
func FormatTime(raw string) string {
	if len(raw) != len(apiTimeLayout) {
		return raw
	}
	t, err := time.Parse(apiTimeLayout, raw)
	if err != nil {
		return raw
	}
	return t.Format(bronzeLayout)
}

func hourPath(station string, t time.Time) string {
	return fmt.Sprintf("/plan/%s/%s/%s", station, t.Format("060102"), t.Format("15"))
}
