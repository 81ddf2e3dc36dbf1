// Package timetable collects departures from the DB Timetables API.
package timetable

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"punktlich/internal/departures"
	"punktlich/internal/httpclient"
)

// Plan hours fetched around the current hour.
const (
	planHoursBack    = 2
	planHoursForward = 5
)

type Client struct {
	baseURL     string
	stationID   string
	stationName string
	clientID    string
	apiKey      string
	pause       time.Duration
	loc         *time.Location
	session     *http.Client
	retry       httpclient.Retry
}

type Option func(*Client)

func WithStationName(name string) Option { return func(c *Client) { c.stationName = name } }

// WithPause sets the delay between consecutive plan requests.
func WithPause(d time.Duration) Option { return func(c *Client) { c.pause = d } }

// WithLocation sets the zone the plan hour slots are expressed in.
func WithLocation(loc *time.Location) Option { return func(c *Client) { c.loc = loc } }

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.session = hc } }

func WithRetry(r httpclient.Retry) Option { return func(c *Client) { c.retry = r } }

func NewClient(baseURL, stationID, clientID, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		stationID:   stationID,
		stationName: "Berlin Hbf",
		clientID:    clientID,
		apiKey:      apiKey,
		pause:       500 * time.Millisecond,
		loc:         time.UTC,
		session:     &http.Client{Timeout: 20 * time.Second},
		retry:       httpclient.DefaultRetry,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Configured reports whether API credentials are present.
func (c *Client) Configured() bool {
	return c.clientID != "" && c.apiKey != ""
}

func (c *Client) newRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?sub=yes", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("DB-Client-Id", c.clientID)
	req.Header.Set("DB-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/xml")
	return req, nil
}

func (c *Client) get(ctx context.Context, path string) (*Timetable, error) {
	resp, err := httpclient.DoWithRetry(ctx, c.session, c.retry, func() (*http.Request, error) {
		return c.newRequest(ctx, path)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var tt Timetable
	if err := xml.NewDecoder(resp.Body).Decode(&tt); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &tt, nil
}

// FetchPlanMap loads the planned timetable for the hours around now. Hours that
// fail are logged and skipped.
func (c *Client) FetchPlanMap(ctx context.Context, now time.Time) (PlanMap, error) {
	plan := PlanMap{}
	now = now.In(c.loc)
	for i := -planHoursBack; i <= planHoursForward; i++ {
		slot := now.Add(time.Duration(i) * time.Hour)
		path := hourPath(c.stationID, slot)
		tt, err := c.get(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("timetable: plan hour %s unavailable: %v", slot.Format("15"), err)
		} else {
			plan.addPlan(tt)
		}
		if i < planHoursForward && c.pause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.pause):
			}
		}
	}
	return plan, nil
}

// FetchDepartures loads the recent changes for the station and flattens them.
func (c *Client) FetchDepartures(ctx context.Context, plan PlanMap) ([]departures.Bronze, error) {
	tt, err := c.get(ctx, "/fchg/"+c.stationID)
	if err != nil {
		return nil, fmt.Errorf("fetch changes: %w", err)
	}
	return Flatten(tt, plan, c.stationName), nil
}

// Collect runs a full collection cycle: plan map, then changes.
func (c *Client) Collect(ctx context.Context, now time.Time) ([]departures.Bronze, error) {
	plan, err := c.FetchPlanMap(ctx, now)
	if err != nil {
		return nil, err
	}
	log.Printf("timetable: plan map holds %d trains", len(plan))
	return c.FetchDepartures(ctx, plan)
}
