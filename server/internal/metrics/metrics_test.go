package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidianstack/seedmonitor/pkg/types"
	"github.com/obsidianstack/seedmonitor/server/internal/compute"
	"github.com/obsidianstack/seedmonitor/server/internal/report"
)

func parse(t *testing.T, text string) map[string]*dto.MetricFamily {
	t.Helper()
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(strings.NewReader(text))
	require.NoError(t, err)
	return mfs
}

func sampleReport() *report.Report {
	a := types.NodeAddress{Host: "a.onion", Port: 8000}
	b := types.NodeAddress{Host: "b.onion", Port: 8000}
	return &report.Report{
		GeneratedAt: time.Now(),
		TotalErrors: 3,
		Rows: []report.Row{
			{
				Address:    a,
				RTTAverage: 1.5,
				Deviations: []compute.Deviation{
					{Key: "offers", Defined: true, Percent: 180},
					{Key: "trades", Defined: false},
				},
			},
			{Address: b, RTTAverage: 0.5},
		},
		Breaches: []report.Breach{{Address: a, Key: "offers", Percent: 180}},
	}
}

func TestObserveReport(t *testing.T) {
	m := New()
	m.ObserveReport(sampleReport())

	var buf bytes.Buffer
	require.NoError(t, m.WriteText(&buf))
	mfs := parse(t, buf.String())

	assert.EqualValues(t, 3, sumFamily(mfs["seedmonitor_report_errors"]))
	assert.EqualValues(t, 2, sumFamily(mfs["seedmonitor_report_nodes"]))
	assert.EqualValues(t, 1, sumFamily(mfs["seedmonitor_report_breaches"]))

	dev := mfs["seedmonitor_node_deviation_percent"]
	require.NotNil(t, dev)
	require.Len(t, dev.GetMetric(), 1, "one series for the defined key only")
	assert.EqualValues(t, 180, dev.GetMetric()[0].GetGauge().GetValue())
	assert.EqualValues(t, 2, sumFamily(mfs["seedmonitor_node_rtt_average_seconds"]))
}

func TestObserveReport_ResetsStaleNodes(t *testing.T) {
	m := New()
	m.ObserveReport(sampleReport())
	m.ObserveReport(&report.Report{})

	totals, err := m.Totals()
	require.NoError(t, err)
	assert.EqualValues(t, 2, totals["seedmonitor_report_passes_total"])
	assert.NotContains(t, totals, "seedmonitor_node_rtt_average_seconds", "rtt series should be gone after an empty report")
}

func TestCounters(t *testing.T) {
	m := New()
	m.AlertResult(OutcomeSent)
	m.AlertResult(OutcomeSent)
	m.AlertResult(OutcomeFailed)
	m.ProbeReceived(OutcomeAccepted)

	totals, err := m.Totals()
	require.NoError(t, err)
	assert.EqualValues(t, 3, totals["seedmonitor_alerts_total"])
	assert.EqualValues(t, 1, totals["seedmonitor_probes_received_total"])
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveReport(sampleReport())
		m.AlertResult(OutcomeSent)
		m.ProbeReceived(OutcomeRejected)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.AlertResult(OutcomeFailed)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, rec.Body.String(), `seedmonitor_alerts_total{outcome="failed"} 1`)
}
