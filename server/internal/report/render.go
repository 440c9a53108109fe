package report

import (
	"bytes"
	"html/template"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/obsidianstack/seedmonitor/server/internal/compute"
)

// TimestampLayout renders the check start the way operators are used to
// reading it in the log.
const TimestampLayout = "Mon Jan 02 15:04:05 MST 2006"

// Color maps a severity to the HTML color used for it.
func Color(s compute.Severity) string {
	switch s {
	case compute.SeverityElevated:
		return "blue"
	case compute.SeverityCritical:
		return "red"
	default:
		return "black"
	}
}

// Text renders the plain text report.
func (r *Report) Text() string {
	var sb strings.Builder
	sb.WriteString("Seed nodes in error: " + strconv.Itoa(r.TotalErrors) + "\n")
	sb.WriteString("Last check started at: " + r.CheckStarted.Format(TimestampLayout) + "\n")

	for _, row := range r.Rows {
		sb.WriteString("\nOperator: " + row.Operator)
		sb.WriteString("\nNode address: " + row.Address.String())
		sb.WriteString("\nNum requests: " + strconv.Itoa(row.NumRequests))
		sb.WriteString("\nNum errors: " + strconv.Itoa(row.NumErrors))
		sb.WriteString("\nLast error message: " + lastErrorText(row))
		sb.WriteString("\nRRT average: " + formatFloat(row.RTTAverage))
		sb.WriteString("\nLast data: " + strings.Join(formatEntries(row.LastData), ", "))
		sb.WriteString("\n")
		if row.HasData() {
			sb.WriteString("Data deviation last request:\n")
			for _, d := range row.Deviations {
				sb.WriteString(deviationText(d) + "\n")
			}
		}
		sb.WriteString("Duration of all requests: " + strings.Join(formatDurations(row.Durations), ", ") + "\n")
		sb.WriteString("All data: " + strings.Join(formatSamples(row.AllData), ", ") + "\n")
	}
	return sb.String()
}

// HTML renders the report as a single HTML document.
func (r *Report) HTML() string {
	view := htmlView{
		TotalErrors: r.TotalErrors,
		Timestamp:   r.CheckStarted.Format(TimestampLayout),
		Rows:        make([]htmlRow, 0, len(r.Rows)),
	}
	for _, row := range r.Rows {
		hr := htmlRow{
			RowColor:    Color(row.RowSeverity),
			RTTColor:    Color(row.RTTSeverity),
			Operator:    row.Operator,
			Address:     row.Address.String(),
			NumRequests: row.NumRequests,
			NumErrors:   row.NumErrors,
			LastError:   lastErrorText(row),
			RTTAverage:  formatFloat(row.RTTAverage),
			LastData:    formatEntries(row.LastData),
		}
		for _, d := range row.Deviations {
			hr.Deviations = append(hr.Deviations, htmlDeviation{Color: Color(d.Severity), Text: deviationText(d)})
		}
		view.Rows = append(view.Rows, hr)
	}

	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, view); err != nil {
		slog.Error("report: render html", "err", err)
		return ""
	}
	return buf.String()
}

type htmlView struct {
	TotalErrors int
	Timestamp   string
	Rows        []htmlRow
}

type htmlRow struct {
	RowColor    string
	RTTColor    string
	Operator    string
	Address     string
	NumRequests int
	NumErrors   int
	LastError   string
	RTTAverage  string
	LastData    []string
	Deviations  []htmlDeviation
}

type htmlDeviation struct {
	Color string
	Text  string
}

var htmlTemplate = template.Must(template.New("report").Parse(`<html><head><style>table, th, td {border: 1px solid black;}</style></head><body>
<h1>Seed nodes in error: <b>{{.TotalErrors}}</b><br/>Last check started at: {{.Timestamp}}<br/></h1>
<table style="width:100%">
<tr><th align="left">Operator</th><th align="left">Node address</th><th align="left">Num requests</th><th align="left">Num errors</th><th align="left">Last error message</th><th align="left">RRT average</th><th align="left">Last data</th><th align="left">Data deviation last request</th></tr>
{{- range .Rows}}
<tr><td><font color="{{.RowColor}}">{{.Operator}}</font></td><td><font color="{{.RowColor}}">{{.Address}}</font></td><td><font color="{{.RowColor}}">{{.NumRequests}}</font></td><td><font color="{{.RowColor}}">{{.NumErrors}}</font></td><td><font color="{{.RowColor}}">{{.LastError}}</font></td><td><font color="{{.RTTColor}}">{{.RTTAverage}}</font></td><td>{{range $i, $e := .LastData}}{{if $i}}<br/>{{end}}{{$e}}{{end}}</td><td>{{range .Deviations}}<font color="{{.Color}}">{{.Text}}</font><br/>{{end}}</td></tr>
{{- end}}
</table></body></html>
`))

func lastErrorText(row Row) string {
	if row.LastError == nil {
		return ""
	}
	return row.LastError.String()
}

func deviationText(d compute.Deviation) string {
	if !d.Defined {
		return d.Key + ": n/a"
	}
	return d.Key + ": " + formatFloat(d.Percent) + "%"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatEntries renders m as key=value pairs in key order.
func formatEntries(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k + "=" + strconv.Itoa(m[k])
	}
	return out
}

func formatSamples(samples []map[string]int) []string {
	out := make([]string, len(samples))
	for i, m := range samples {
		out[i] = "{" + strings.Join(formatEntries(m), ", ") + "}"
	}
	return out
}

func formatDurations(ds []time.Duration) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}
