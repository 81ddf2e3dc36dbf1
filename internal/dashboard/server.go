// Package dashboard serves the punctuality dashboard over HTTP.
package dashboard

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"

	"punktlich/internal/db"
	"punktlich/internal/departures"
	"punktlich/internal/dispatch"
	"punktlich/internal/metrics"
)

// Trigger starts a new ingestion session elsewhere.
type Trigger interface {
	Trigger(ctx context.Context) error
}

type Options struct {
	Title string

	// CSRFKey enables CSRF protection of the ingestion form. Any length; it is
	// stretched to the 32 bytes the middleware needs.
	CSRFKey       string
	SecureCookies bool

	Metrics *metrics.Collector

	DepartureLimit int
}

const (
	defaultDepartureLimit = 50
	maxDepartureLimit     = 500
)

type Server struct {
	store   Store
	trigger Trigger
	opts    Options
	tmpl    *template.Template
	router  *mux.Router
}

// New wires the routes. trigger may be nil, which disables the ingestion button.
func New(store Store, trigger Trigger, opts Options) *Server {
	if opts.Title == "" {
		opts.Title = "Berlin Hbf"
	}
	if opts.DepartureLimit <= 0 {
		opts.DepartureLimit = defaultDepartureLimit
	}
	s := &Server{
		store:   store,
		trigger: trigger,
		opts:    opts,
		tmpl:    template.Must(template.New("index").Funcs(templateFuncs).Parse(indexTemplate)),
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.index).Methods(http.MethodGet)
	r.HandleFunc("/ingest", s.ingest).Methods(http.MethodPost)
	r.HandleFunc("/api/gold", s.apiGold).Methods(http.MethodGet)
	r.HandleFunc("/api/departures", s.apiDepartures).Methods(http.MethodGet)
	r.HandleFunc("/export.xlsx", s.exportXLSX).Methods(http.MethodGet)
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)
	}

	r.Use(loggingMiddleware(opts.Metrics))
	r.NotFoundHandler = loggingMiddleware(opts.Metrics)(http.NotFoundHandler())
	if opts.CSRFKey != "" {
		key := sha256.Sum256([]byte(opts.CSRFKey))
		r.Use(csrf.Protect(key[:], csrf.Secure(opts.SecureCookies), csrf.Path("/")))
	}
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

type serviceOption struct {
	Name     string
	Selected bool
}

type flash struct {
	Kind    string // success, error
	Message string
	Detail  string
}

type pageData struct {
	Title      string
	CSRFField  template.HTML
	CanIngest  bool
	Flash      *flash
	NoData     bool
	Error      string
	Warning    string
	Services   []serviceOption
	Summary    Summary
	Chart      template.JS
	Rows       []departures.Gold
	ExportLink string
}

var flashes = map[string]flash{
	"started": {Kind: "success",
		Message: "GitHub Action triggered! Data will update in a few minutes.",
		Detail:  "You can monitor the progress in the Actions tab of the data repository."},
	"missing-token": {Kind: "error",
		Message: "Missing GitHub token. Add GH_TOKEN as a secret of the space."},
	"failed": {Kind: "error",
		Message: "Failed to trigger ingestion. Check the server log for the response."},
	"unavailable": {Kind: "error",
		Message: "Ingestion cannot be triggered from this deployment."},
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Title:     s.opts.Title,
		CSRFField: csrf.TemplateField(r),
		CanIngest: s.trigger != nil,
	}
	if f, ok := flashes[r.URL.Query().Get("ingest")]; ok {
		data.Flash = &f
	}

	selected := r.URL.Query()["service"]
	types, err := s.store.ServiceTypes(r.Context())
	switch {
	case errors.Is(err, db.ErrNoDatabase):
		data.NoData = true
		s.render(w, r, data)
		return
	case err != nil:
		log.Printf("dashboard: service types: %v", err)
		data.Error = "Error loading database. It might be updating or empty; try triggering ingestion."
		s.render(w, r, data)
		return
	}

	chosen := map[string]bool{}
	for _, v := range selected {
		chosen[v] = true
	}
	for _, t := range types {
		data.Services = append(data.Services, serviceOption{Name: t, Selected: len(selected) == 0 || chosen[t]})
	}

	rows, err := s.store.Gold(r.Context(), selected)
	if err != nil {
		log.Printf("dashboard: gold: %v", err)
		data.Error = "Error loading database. It might be updating or empty; try triggering ingestion."
		s.render(w, r, data)
		return
	}
	if len(rows) == 0 {
		data.Warning = "No data matches the selected filters."
		s.render(w, r, data)
		return
	}

	data.Rows = rows
	data.Summary = summarize(goldFrame(rows))
	chart, err := json.Marshal(hourlySeries(rows))
	if err != nil {
		log.Printf("dashboard: chart: %v", err)
		chart = []byte("[]")
	}
	data.Chart = template.JS(chart)
	data.ExportLink = "/export.xlsx"
	if len(selected) > 0 {
		data.ExportLink += "?" + url.Values{"service": selected}.Encode()
	}
	s.render(w, r, data)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, data); err != nil {
		log.Printf("render failed: path=%s err=%v", r.URL.Path, err)
	}
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	code := "started"
	switch {
	case s.trigger == nil:
		code = "unavailable"
	default:
		err := s.trigger.Trigger(r.Context())
		switch {
		case errors.Is(err, dispatch.ErrMissingToken):
			code = "missing-token"
		case err != nil:
			log.Printf("dashboard: trigger ingestion: %v", err)
			code = "failed"
		}
	}
	http.Redirect(w, r, "/?ingest="+code, http.StatusSeeOther)
}

type goldResponse struct {
	Summary Summary           `json:"summary"`
	Rows    []departures.Gold `json:"rows"`
}

func (s *Server) apiGold(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.gold(w, r)
	if !ok {
		return
	}
	if rows == nil {
		rows = []departures.Gold{}
	}
	writeJSON(w, r, http.StatusOK, goldResponse{Summary: summarize(goldFrame(rows)), Rows: rows})
}

func (s *Server) apiDepartures(w http.ResponseWriter, r *http.Request) {
	limit := s.opts.DepartureLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxDepartureLimit)
	}
	rows, err := s.store.LatestDepartures(r.Context(), limit)
	if !s.checkStoreErr(w, r, err) {
		return
	}
	if rows == nil {
		rows = []departures.Silver{}
	}
	writeJSON(w, r, http.StatusOK, rows)
}

func (s *Server) exportXLSX(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.gold(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="agg_punctuality.xlsx"`)
	if err := writeXLSX(w, goldFrame(rows)); err != nil {
		log.Printf("dashboard: export: %v", err)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// gold loads the filtered gold rows, writing an error response on failure.
func (s *Server) gold(w http.ResponseWriter, r *http.Request) ([]departures.Gold, bool) {
	rows, err := s.store.Gold(r.Context(), r.URL.Query()["service"])
	if !s.checkStoreErr(w, r, err) {
		return nil, false
	}
	return rows, true
}

func (s *Server) checkStoreErr(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, db.ErrNoDatabase):
		writeError(w, r, http.StatusNotFound, "no data yet")
	default:
		log.Printf("dashboard: query failed: path=%s err=%v", r.URL.Path, err)
		writeError(w, r, http.StatusInternalServerError, "query failed")
	}
	return false
}
