package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/obsidianstack/seedmonitor/pkg/types"
	"github.com/obsidianstack/seedmonitor/server/internal/alerts"
	"github.com/obsidianstack/seedmonitor/server/internal/compute"
	"github.com/obsidianstack/seedmonitor/server/internal/metrics"
	"github.com/obsidianstack/seedmonitor/server/internal/report"
	"github.com/obsidianstack/seedmonitor/server/internal/store"
)

// ReportSource provides the most recent report, or nil before the first pass.
type ReportSource interface {
	Latest() *report.Report
}

// AlertSource provides the retained alert history, newest first.
type AlertSource interface {
	History() []alerts.Alert
}

// Deps are the read-only collaborators of the API.
type Deps struct {
	Store   *store.Store
	Reports ReportSource
	Alerts  AlertSource
	// Metrics is optional; when set, health responses include its totals.
	Metrics *metrics.Metrics
}

// Handler is the HTTP handler for all /api/v1/* read endpoints.
type Handler struct {
	deps Deps
	mux  *http.ServeMux
}

// New creates a Handler and registers all routes.
func New(deps Deps) http.Handler {
	h := &Handler{deps: deps, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/nodes", h.listNodes)
	h.mux.HandleFunc("/api/v1/nodes/", h.getNode) // subtree, extracts {addr}
	h.mux.HandleFunc("/api/v1/report", h.reportText)
	h.mux.HandleFunc("/api/v1/report.html", h.reportHTML)
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.HandleFunc("/api/v1/export", h.export)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}

	resp := HealthResponse{State: "unknown"}
	if h.deps.Store != nil {
		resp.StoredNodes = h.deps.Store.Count()
	}
	if h.deps.Alerts != nil {
		resp.AlertCount = len(h.deps.Alerts.History())
	}
	if h.deps.Metrics != nil {
		totals, err := h.deps.Metrics.Totals()
		if err != nil {
			slog.Warn("api: metric totals unavailable", "err", err)
		}
		resp.Counters = totals
	}

	rep := h.latest()
	if rep == nil {
		jsonResp(w, http.StatusOK, resp)
		return
	}

	resp.NodeCount = len(rep.Rows)
	resp.TotalErrors = rep.TotalErrors
	resp.BreachCount = len(rep.Breaches)
	resp.LastReport = rep.GeneratedAt.UTC().Format(time.RFC3339)
	for _, row := range rep.Rows {
		if row.Failing() {
			resp.NodesInError++
		}
	}
	resp.State = overallState(resp)
	jsonResp(w, http.StatusOK, resp)
}

// listNodes returns GET /api/v1/nodes in report order.
func (h *Handler) listNodes(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.latest(), h.deps.Store).Nodes)
}

// getNode returns GET /api/v1/nodes/{addr}.
func (h *Handler) getNode(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/api/v1/nodes/")
	if raw == "" {
		h.listNodes(w, r)
		return
	}
	raw, err := url.PathUnescape(raw)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid node address")
		return
	}
	addr, err := types.ParseNodeAddress(raw)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	rep := h.latest()
	if rep != nil {
		for _, row := range rep.Rows {
			if row.Address == addr {
				jsonResp(w, http.StatusOK, toNodeResponse(row, h.lastSeen()))
				return
			}
		}
	}
	jsonErr(w, http.StatusNotFound, "node not found")
}

// reportText returns GET /api/v1/report as plain text.
func (h *Handler) reportText(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}
	rep := h.latest()
	if rep == nil {
		jsonErr(w, http.StatusServiceUnavailable, "no report generated yet")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rep.Text()))
}

// reportHTML returns GET /api/v1/report.html.
func (h *Handler) reportHTML(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}
	rep := h.latest()
	if rep == nil {
		jsonErr(w, http.StatusServiceUnavailable, "no report generated yet")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rep.HTML()))
}

// alerts returns GET /api/v1/alerts, newest first.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}
	out := []alerts.Alert{}
	if h.deps.Alerts != nil {
		out = append(out, h.deps.Alerts.History()...)
	}
	jsonResp(w, http.StatusOK, out)
}

// snapshot returns GET /api/v1/snapshot, the full latest report as JSON.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.latest(), h.deps.Store))
}

// export returns GET /api/v1/export, the raw store contents for offline rendering.
func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}
	if h.deps.Store == nil {
		jsonResp(w, http.StatusOK, store.Dump{Nodes: []store.DumpNode{}})
		return
	}
	jsonResp(w, http.StatusOK, h.deps.Store.Export())
}

// --- helpers ----------------------------------------------------------------

func (h *Handler) latest() *report.Report {
	if h.deps.Reports == nil {
		return nil
	}
	return h.deps.Reports.Latest()
}

func (h *Handler) lastSeen() map[types.NodeAddress]time.Time {
	return lastSeenIndex(h.deps.Store)
}

func lastSeenIndex(st *store.Store) map[types.NodeAddress]time.Time {
	if st == nil {
		return nil
	}
	snap := st.Snapshot()
	out := make(map[types.NodeAddress]time.Time, len(snap))
	for _, e := range snap {
		out[e.Address] = e.UpdatedAt
	}
	return out
}

// BuildSnapshot maps rep to its JSON representation. A nil rep yields an
// empty snapshot. st may be nil, in which case last_seen is omitted.
func BuildSnapshot(rep *report.Report, st *store.Store) SnapshotResponse {
	out := SnapshotResponse{
		Nodes:    []NodeResponse{},
		Breaches: []BreachResponse{},
	}
	if rep == nil {
		out.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
		return out
	}

	out.GeneratedAt = rep.GeneratedAt.UTC().Format(time.RFC3339)
	out.CheckStarted = rep.CheckStarted.UTC().Format(time.RFC3339)
	out.TotalErrors = rep.TotalErrors

	seen := lastSeenIndex(st)
	for _, row := range rep.Rows {
		out.Nodes = append(out.Nodes, toNodeResponse(row, seen))
	}
	for _, b := range rep.Breaches {
		out.Breaches = append(out.Breaches, BreachResponse{
			Node:      b.Address.String(),
			Operator:  b.Operator,
			Recipient: b.Recipient,
			Key:       b.Key,
			Percent:   b.Percent,
		})
	}
	return out
}

func toNodeResponse(row report.Row, seen map[types.NodeAddress]time.Time) NodeResponse {
	resp := NodeResponse{
		Address:     row.Address.String(),
		Operator:    row.Operator,
		NumRequests: row.NumRequests,
		NumErrors:   row.NumErrors,
		RTTAverage:  row.RTTAverage,
		RTTSeverity: row.RTTSeverity,
		RowSeverity: row.RowSeverity,
		LastData:    row.LastData,
		Deviations:  row.Deviations,
		Diagnostics: computeDiagnostics(row),
	}
	if resp.LastData == nil {
		resp.LastData = map[string]int{}
	}
	if resp.Deviations == nil {
		resp.Deviations = []compute.Deviation{}
	}
	if resp.Diagnostics == nil {
		resp.Diagnostics = []DiagnosticHint{}
	}
	if row.LastError != nil {
		resp.LastError = row.LastError.String()
	}
	if t, ok := seen[row.Address]; ok {
		resp.LastSeen = t.UTC().Format(time.RFC3339)
	}
	return resp
}

// overallState derives the fleet state from a health summary.
func overallState(h HealthResponse) string {
	switch {
	case h.BreachCount > 0:
		return "critical"
	case h.NodesInError > 0:
		return "degraded"
	default:
		return "ok"
	}
}

func getOnly(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
