// Package metrics exposes the monitor's own Prometheus metrics: report passes,
// probe ingestion, alert delivery and the per-node values of the latest
// report. Collectors live in a private registry so tests and multiple
// instances never collide on the global default registry.
package metrics

import (
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/obsidianstack/seedmonitor/server/internal/report"
)

const namespace = "seedmonitor"

// Outcome labels for AlertResult and ProbeReceived.
const (
	OutcomeSent     = "sent"
	OutcomeFailed   = "failed"
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// Metrics owns the registry and every collector registered in it.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	reportsTotal   prometheus.Counter
	alertsTotal    *prometheus.CounterVec
	probesTotal    *prometheus.CounterVec
	nodesTotal     prometheus.Gauge
	errorsTotal    prometheus.Gauge
	breachesLast   prometheus.Gauge
	deviationPct   *prometheus.GaugeVec
	rttAverageSecs *prometheus.GaugeVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		reportsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "report", "passes_total"),
			Help: "Report passes completed",
		}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "alerts", "total"),
			Help: "Deviation alerts handed to the notifier, by outcome",
		}, []string{"outcome"}),
		probesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "probes", "received_total"),
			Help: "Probe results posted to the ingestion endpoint, by outcome",
		}, []string{"outcome"}),
		nodesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prometheus.BuildFQName(namespace, "report", "nodes"),
			Help: "Seed nodes in the latest report",
		}),
		errorsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prometheus.BuildFQName(namespace, "report", "errors"),
			Help: "Failed requests across all seed nodes in the latest report",
		}),
		breachesLast: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prometheus.BuildFQName(namespace, "report", "breaches"),
			Help: "Deviations above the dispatch threshold in the latest report",
		}),
		deviationPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: prometheus.BuildFQName(namespace, "node", "deviation_percent"),
			Help: "Latest data value of a node as a percentage of the fleet average",
		}, []string{"node", "key"}),
		rttAverageSecs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: prometheus.BuildFQName(namespace, "node", "rtt_average_seconds"),
			Help: "Average request round trip time of a node",
		}, []string{"node"}),
	}
	m.reg.MustRegister(
		m.reportsTotal,
		m.alertsTotal,
		m.probesTotal,
		m.nodesTotal,
		m.errorsTotal,
		m.breachesLast,
		m.deviationPct,
		m.rttAverageSecs,
	)
	return m
}

// ObserveReport replaces the per-node gauges with the values of rep.
func (m *Metrics) ObserveReport(rep *report.Report) {
	if m == nil || rep == nil {
		return
	}
	m.reportsTotal.Inc()
	m.nodesTotal.Set(float64(len(rep.Rows)))
	m.errorsTotal.Set(float64(rep.TotalErrors))
	m.breachesLast.Set(float64(len(rep.Breaches)))

	m.deviationPct.Reset()
	m.rttAverageSecs.Reset()
	for _, row := range rep.Rows {
		node := row.Address.String()
		m.rttAverageSecs.WithLabelValues(node).Set(row.RTTAverage)
		for _, d := range row.Deviations {
			if d.Defined {
				m.deviationPct.WithLabelValues(node, d.Key).Set(d.Percent)
			}
		}
	}
}

// AlertResult counts one notification attempt.
func (m *Metrics) AlertResult(outcome string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(outcome).Inc()
}

// ProbeReceived counts one ingestion request.
func (m *Metrics) ProbeReceived(outcome string) {
	if m == nil {
		return
	}
	m.probesTotal.WithLabelValues(outcome).Inc()
}

// Gather returns the current metric families.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) {
	return m.reg.Gather()
}

// Totals sums every family across its label sets, keyed by metric name.
func (m *Metrics) Totals() (map[string]float64, error) {
	mfs, err := m.Gather()
	if err != nil {
		return nil, fmt.Errorf("metrics: gather: %w", err)
	}
	out := make(map[string]float64, len(mfs))
	for _, mf := range mfs {
		out[mf.GetName()] = sumFamily(mf)
	}
	return out, nil
}

// WriteText encodes all metric families in the Prometheus text format.
func (m *Metrics) WriteText(w io.Writer) error {
	mfs, err := m.Gather()
	if err != nil {
		return fmt.Errorf("metrics: gather: %w", err)
	}
	enc := expfmt.NewEncoder(w, textFormat)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Handler serves the text exposition.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", string(textFormat))
		if err := m.WriteText(w); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

var textFormat = expfmt.NewFormat(expfmt.TypeTextPlain)

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
func sumFamily(mf *dto.MetricFamily) float64 {
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		}
	}
	return total
}
