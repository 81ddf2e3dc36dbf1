package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"punktlich/internal/db"
	"punktlich/internal/departures"
	"punktlich/internal/dispatch"
	"punktlich/internal/metrics"
)

type fakeStore struct {
	gold      []departures.Gold
	silver    []departures.Silver
	err       error
	lastLimit int
	calls     int
}

func (f *fakeStore) Gold(_ context.Context, services []string) ([]departures.Gold, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(services) == 0 {
		return f.gold, nil
	}
	want := map[string]bool{}
	for _, s := range services {
		want[s] = true
	}
	var out []departures.Gold
	for _, g := range f.gold {
		if want[g.ServiceType] {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeStore) ServiceTypes(context.Context) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	seen := map[string]bool{}
	var out []string
	for _, g := range f.gold {
		if !seen[g.ServiceType] {
			seen[g.ServiceType] = true
			out = append(out, g.ServiceType)
		}
	}
	return out, nil
}

func (f *fakeStore) LatestDepartures(_ context.Context, limit int) ([]departures.Silver, error) {
	f.calls++
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.silver, nil
}

type fakeTrigger struct {
	err   error
	calls int
}

func (f *fakeTrigger) Trigger(context.Context) error {
	f.calls++
	return f.err
}

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

func sampleGold() []departures.Gold {
	return []departures.Gold{
		{ServiceType: "Long Distance", ScheduledHour: intp(8), DayOfWeek: strp("Monday"), TotalTrains: 10, DelayedTrains: 1,
			AvgDelayMinutes: 2, PunctualityRate: 90, DelayRate: 10, TotalDisruptions: 1, DisruptionRate: 10},
		{ServiceType: "Long Distance", ScheduledHour: intp(8), DayOfWeek: strp("Tuesday"), TotalTrains: 10, DelayedTrains: 3,
			AvgDelayMinutes: 4, PunctualityRate: 70, DelayRate: 30, TotalDisruptions: 2, DisruptionRate: 20},
		{ServiceType: "Regional", ScheduledHour: intp(9), DayOfWeek: strp("Monday"), TotalTrains: 4, DelayedTrains: 0,
			AvgDelayMinutes: 0, PunctualityRate: 100, DelayRate: 0, TotalDisruptions: 0, DisruptionRate: 0},
	}
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIndexRendersDashboard(t *testing.T) {
	s := New(&fakeStore{gold: sampleGold()}, &fakeTrigger{}, Options{})
	rec := do(t, s.Handler(), http.MethodGet, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Train Punctuality: Berlin Hbf")
	assert.Contains(t, body, "Avg Punctuality")
	assert.Contains(t, body, "86.7%")
	assert.Contains(t, body, `"name":"Long Distance"`)
	assert.Contains(t, body, "Trigger new ingestion")
	assert.Contains(t, body, `<option value="Long Distance" selected>`)
	assert.Contains(t, body, "08:00")
}

func TestIndexWithoutDatabase(t *testing.T) {
	s := New(&fakeStore{err: fmt.Errorf("open: %w", db.ErrNoDatabase)}, nil, Options{})
	rec := do(t, s.Handler(), http.MethodGet, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "No data found yet")
	assert.NotContains(t, body, "Trigger new ingestion")
}

func TestIndexQueryError(t *testing.T) {
	s := New(&fakeStore{err: errors.New("locked")}, nil, Options{})
	rec := do(t, s.Handler(), http.MethodGet, "/")

	assert.Contains(t, rec.Body.String(), "Error loading database")
}

func TestIndexFilterWithoutMatches(t *testing.T) {
	s := New(&fakeStore{gold: sampleGold()}, nil, Options{})
	rec := do(t, s.Handler(), http.MethodGet, "/?service=S-Bahn")

	body := rec.Body.String()
	assert.Contains(t, body, "No data matches the selected filters.")
	assert.Contains(t, body, `<option value="Long Distance">`)
}

func TestIndexFilterLinksExport(t *testing.T) {
	s := New(&fakeStore{gold: sampleGold()}, nil, Options{})
	rec := do(t, s.Handler(), http.MethodGet, "/?service=Long+Distance")

	body := rec.Body.String()
	assert.Contains(t, body, `href="/export.xlsx?service=Long+Distance"`)
	assert.NotContains(t, body, "Regional</td>")
}

func TestIndexShowsFlash(t *testing.T) {
	s := New(&fakeStore{gold: sampleGold()}, &fakeTrigger{}, Options{})

	rec := do(t, s.Handler(), http.MethodGet, "/?ingest=started")
	assert.Contains(t, rec.Body.String(), "GitHub Action triggered!")

	rec = do(t, s.Handler(), http.MethodGet, "/?ingest=bogus")
	assert.NotContains(t, rec.Body.String(), `class="flash`)
}

func TestIngestRedirects(t *testing.T) {
	cases := []struct {
		name    string
		trigger Trigger
		want    string
	}{
		{"started", &fakeTrigger{}, "/?ingest=started"},
		{"missing token", &fakeTrigger{err: dispatch.ErrMissingToken}, "/?ingest=missing-token"},
		{"failed", &fakeTrigger{err: errors.New("boom")}, "/?ingest=failed"},
		{"no trigger", nil, "/?ingest=unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(&fakeStore{}, tc.trigger, Options{})
			rec := do(t, s.Handler(), http.MethodPost, "/ingest")
			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, tc.want, rec.Header().Get("Location"))
		})
	}
}

func TestIngestRequiresCSRFToken(t *testing.T) {
	trigger := &fakeTrigger{}
	s := New(&fakeStore{}, trigger, Options{CSRFKey: "secret"})

	rec := do(t, s.Handler(), http.MethodPost, "/ingest")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, trigger.calls)
}

func TestIngestWithCSRFToken(t *testing.T) {
	trigger := &fakeTrigger{}
	s := New(&fakeStore{gold: sampleGold()}, trigger, Options{CSRFKey: "secret"})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	client := srv.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	resp, err := client.Get(srv.URL + "/")
	require.NoError(t, err)
	page, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	token := hiddenValue(t, string(page), "gorilla.csrf.Token")
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/ingest", strings.NewReader(url.Values{"gorilla.csrf.Token": {token}}.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range resp.Cookies() {
		req.AddCookie(c)
	}
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, 1, trigger.calls)
}

func hiddenValue(t *testing.T, page, name string) string {
	t.Helper()
	marker := `name="` + name + `" value="`
	i := strings.Index(page, marker)
	require.GreaterOrEqual(t, i, 0, "hidden field %s not rendered", name)
	rest := page[i+len(marker):]
	return rest[:strings.Index(rest, `"`)]
}

func TestAPIGold(t *testing.T) {
	s := New(&fakeStore{gold: sampleGold()}, nil, Options{})
	rec := do(t, s.Handler(), http.MethodGet, "/api/gold?service=Long+Distance")

	require.Equal(t, http.StatusOK, rec.Code)
	var got goldResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Rows, 2)
	assert.Equal(t, Summary{MeanPunctuality: 80, MeanDelay: 3, Disruptions: 3, Rows: 2}, got.Summary)
}

func TestAPIGoldEmptyIsArray(t *testing.T) {
	s := New(&fakeStore{}, nil, Options{})
	rec := do(t, s.Handler(), http.MethodGet, "/api/gold")

	assert.JSONEq(t, `{"summary":{"mean_punctuality_rate":0,"mean_avg_delay_minutes":0,"total_disruptions":0,"rows":0},"rows":[]}`, rec.Body.String())
}

func TestAPIGoldWithoutDatabase(t *testing.T) {
	s := New(&fakeStore{err: db.ErrNoDatabase}, nil, Options{})
	rec := do(t, s.Handler(), http.MethodGet, "/api/gold")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s = New(&fakeStore{err: errors.New("io")}, nil, Options{})
	rec = do(t, s.Handler(), http.MethodGet, "/api/gold")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAPIDeparturesLimit(t *testing.T) {
	cases := []struct {
		query     string
		wantCode  int
		wantLimit int
	}{
		{"", http.StatusOK, defaultDepartureLimit},
		{"?limit=10", http.StatusOK, 10},
		{"?limit=100000", http.StatusOK, maxDepartureLimit},
		{"?limit=0", http.StatusBadRequest, 0},
		{"?limit=abc", http.StatusBadRequest, 0},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			store := &fakeStore{}
			s := New(store, nil, Options{})
			rec := do(t, s.Handler(), http.MethodGet, "/api/departures"+tc.query)
			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, tc.wantLimit, store.lastLimit)
			if tc.wantCode == http.StatusOK {
				assert.Equal(t, "[]\n", rec.Body.String())
			}
		})
	}
}

func TestExportXLSX(t *testing.T) {
	s := New(&fakeStore{gold: sampleGold()}, nil, Options{})
	rec := do(t, s.Handler(), http.MethodGet, "/export.xlsx?service=Long+Distance")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "agg_punctuality.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "service_type", rows[0][0])
	assert.Equal(t, "disruption_rate", rows[0][9])
	assert.Equal(t, []string{"Long Distance", "8", "Monday"}, rows[1][:3])
}

func TestHealthAndMetrics(t *testing.T) {
	m := metrics.NewCollector(0)
	s := New(&fakeStore{}, nil, Options{Metrics: m})

	rec := do(t, s.Handler(), http.MethodGet, "/health")
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	do(t, s.Handler(), http.MethodGet, "/nowhere")

	rec = do(t, s.Handler(), http.MethodGet, "/metrics")
	body := rec.Body.String()
	assert.Contains(t, body, `punktlich_dashboard_requests_total{route="/health",status="200"} 1`)
	assert.Contains(t, body, `punktlich_dashboard_requests_total{route="unmatched",status="404"} 1`)
}

func TestMetricsRouteOnlyWhenConfigured(t *testing.T) {
	s := New(&fakeStore{}, nil, Options{})
	rec := do(t, s.Handler(), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
