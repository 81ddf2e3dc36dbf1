package timetable

import "encoding/xml"

// Timetable is the document returned by the plan and fchg endpoints.
type Timetable struct {
	XMLName xml.Name `xml:"timetable"`
	Station string   `xml:"station,attr"`
	Stops   []Stop   `xml:"s"`
}

type Stop struct {
	ID        string     `xml:"id,attr"`
	Messages  []Message  `xml:"m"`
	TripLabel *TripLabel `xml:"tl"`
	Arrival   *Event     `xml:"ar"`
	Departure *Event     `xml:"dp"`
}

type TripLabel struct {
	Category string `xml:"c,attr"` // ICE
	Number   string `xml:"n,attr"` // 147
	Owner    string `xml:"o,attr"`
	Type     string `xml:"t,attr"`
	Filter   string `xml:"f,attr"`
}

// Event is an arrival or departure. Times use the YYMMDDHHMM layout.
type Event struct {
	PlannedTime   string    `xml:"pt,attr"`
	ChangedTime   string    `xml:"ct,attr"`
	PlannedPath   string    `xml:"ppth,attr"`
	ChangedPath   string    `xml:"cpth,attr"`
	PlannedTrack  string    `xml:"pp,attr"`
	Line          string    `xml:"l,attr"`
	Category      string    `xml:"c,attr"`
	Number        string    `xml:"n,attr"`
	ChangedStatus string    `xml:"cs,attr"`
	Messages      []Message `xml:"m"`
}

type Message struct {
	ID       string `xml:"id,attr"`
	Type     string `xml:"t,attr"`
	Category string `xml:"cat,attr"`
	From     string `xml:"from,attr"`
	To       string `xml:"to,attr"`
	Stamp    string `xml:"ts,attr"`
}

// path prefers the changed path over the planned one.
func (e *Event) path() string {
	if e == nil {
		return ""
	}
	if e.ChangedPath != "" {
		return e.ChangedPath
	}
	return e.PlannedPath
}
