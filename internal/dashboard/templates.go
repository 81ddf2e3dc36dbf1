package dashboard

import (
	"fmt"
	"html/template"
)

var templateFuncs = template.FuncMap{
	"hour": func(h *int) string {
		if h == nil {
			return "-"
		}
		return fmt.Sprintf("%02d:00", *h)
	},
	"day": func(d *string) string {
		if d == nil {
			return "-"
		}
		return *d
	},
	"pct": func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
	"mins": func(v float64) string {
		return fmt.Sprintf("%.1f min", v)
	},
}

const indexTemplate = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Train Punctuality: {{.Title}}</title>
<script src="https://cdn.plot.ly/plotly-2.35.2.min.js" charset="utf-8"></script>
<style>
body { font-family: system-ui, sans-serif; margin: 0; display: flex; min-height: 100vh; }
aside { width: 260px; padding: 1rem; background: #f4f5f7; }
main { flex: 1; padding: 1rem 2rem; }
.flash, .banner { padding: .6rem .8rem; border-radius: 4px; margin-bottom: 1rem; }
.success { background: #e3f6e8; color: #1d6b35; }
.error { background: #fde8e8; color: #8a1c1c; }
.warning { background: #fff6da; color: #7a5a00; }
.info { background: #e6f0fb; color: #1b4f8a; }
.metrics { display: flex; gap: 2rem; margin: 1rem 0; }
.metric b { display: block; font-size: 1.6rem; }
table { border-collapse: collapse; width: 100%; font-size: .9rem; }
th, td { padding: .3rem .5rem; border-bottom: 1px solid #ddd; text-align: right; }
th:first-child, td:first-child { text-align: left; }
select { width: 100%; }
</style>
</head>
<body>
<aside>
  <h3>Controls</h3>
  {{if .CanIngest}}
  <form method="post" action="/ingest">
    {{.CSRFField}}
    <button type="submit">Trigger new ingestion</button>
  </form>
  {{end}}
  {{if .Services}}
  <h3>Filters</h3>
  <form method="get" action="/">
    <label for="service">Service type</label>
    <select id="service" name="service" multiple size="{{len .Services}}">
      {{range .Services}}<option value="{{.Name}}"{{if .Selected}} selected{{end}}>{{.Name}}</option>{{end}}
    </select>
    <button type="submit">Apply</button>
  </form>
  {{end}}
</aside>
<main>
  <h1>Train Punctuality: {{.Title}}</h1>
  {{with .Flash}}
  <div class="flash {{.Kind}}">{{.Message}}{{with .Detail}}<br><small>{{.}}</small>{{end}}</div>
  {{end}}

  {{if .NoData}}
  <div class="banner info">No data found yet. Trigger an ingestion to fetch departures, then refresh once the pipeline has run.</div>
  {{else if .Error}}
  <div class="banner error">{{.Error}}</div>
  {{else if .Warning}}
  <div class="banner warning">{{.Warning}}</div>
  {{else}}
  <section class="metrics">
    <div class="metric">Avg Punctuality<b>{{pct .Summary.MeanPunctuality}}</b></div>
    <div class="metric">Avg Delay<b>{{mins .Summary.MeanDelay}}</b></div>
    <div class="metric">Total Disruptions<b>{{.Summary.Disruptions}}</b></div>
  </section>

  <h2>Punctuality by hour</h2>
  <div id="chart" style="height:420px"></div>
  <script>
  (function () {
    var series = {{.Chart}};
    var traces = series.map(function (s) {
      return { x: s.x, y: s.y, name: s.name, type: "scatter", mode: "lines+markers" };
    });
    Plotly.newPlot("chart", traces, {
      xaxis: { title: "Hour", dtick: 1 },
      yaxis: { title: "Punctuality rate (%)", range: [0, 100] },
      margin: { t: 20 }
    }, { responsive: true });
  })();
  </script>

  <h2>Detailed data</h2>
  <p><a href="{{.ExportLink}}">Download as Excel</a></p>
  <table>
    <thead>
      <tr>
        <th>Service</th><th>Hour</th><th>Day</th><th>Trains</th><th>Delayed</th>
        <th>Avg delay</th><th>Punctuality</th><th>Delay rate</th><th>Disruptions</th><th>Disruption rate</th>
      </tr>
    </thead>
    <tbody>
      {{range .Rows}}
      <tr>
        <td>{{.ServiceType}}</td><td>{{hour .ScheduledHour}}</td><td>{{day .DayOfWeek}}</td>
        <td>{{.TotalTrains}}</td><td>{{.DelayedTrains}}</td><td>{{mins .AvgDelayMinutes}}</td>
        <td>{{pct .PunctualityRate}}</td><td>{{pct .DelayRate}}</td>
        <td>{{.TotalDisruptions}}</td><td>{{pct .DisruptionRate}}</td>
      </tr>
      {{end}}
    </tbody>
  </table>
  {{end}}
</main>
</body>
</html>
`
