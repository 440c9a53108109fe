package api

import "github.com/obsidianstack/seedmonitor/server/internal/compute"

// HealthResponse is the payload for GET /api/v1/health. StoredNodes counts
// every node with probe history, including nodes first seen after the latest
// report pass; NodeCount counts the rows of that report.
type HealthResponse struct {
	// State is "ok" when no node is failing, "degraded" when some are,
	// "critical" when a deviation breached the dispatch threshold, and
	// "unknown" before the first report pass.
	State        string `json:"state"`
	NodeCount    int    `json:"node_count"`
	StoredNodes  int    `json:"stored_nodes"`
	NodesInError int    `json:"nodes_in_error"`
	TotalErrors  int    `json:"total_errors"`
	BreachCount  int    `json:"breach_count"`
	AlertCount   int    `json:"alert_count"`
	// LastReport is the generation time of the latest report (RFC3339).
	LastReport string `json:"last_report,omitempty"`
	// Counters holds the monitor's own metric totals by metric name.
	Counters map[string]float64 `json:"counters,omitempty"`
}

// NodeResponse is one node in GET /api/v1/nodes or GET /api/v1/nodes/{addr}.
type NodeResponse struct {
	Address     string              `json:"address"`
	Operator    string              `json:"operator"`
	NumRequests int                 `json:"num_requests"`
	NumErrors   int                 `json:"num_errors"`
	LastError   string              `json:"last_error,omitempty"`
	RTTAverage  float64             `json:"rtt_average_seconds"`
	RTTSeverity compute.Severity    `json:"rtt_severity"`
	RowSeverity compute.Severity    `json:"row_severity"`
	LastData    map[string]int      `json:"last_data"`
	Deviations  []compute.Deviation `json:"deviations"`
	Diagnostics []DiagnosticHint    `json:"diagnostics"`
	LastSeen    string              `json:"last_seen,omitempty"` // RFC3339
}

// BreachResponse is one deviation above the dispatch threshold.
type BreachResponse struct {
	Node      string  `json:"node"`
	Operator  string  `json:"operator"`
	Recipient string  `json:"recipient"`
	Key       string  `json:"key"`
	Percent   float64 `json:"percent"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the WebSocket
// feed.
type SnapshotResponse struct {
	GeneratedAt  string           `json:"generated_at"`  // RFC3339
	CheckStarted string           `json:"check_started"` // RFC3339
	TotalErrors  int              `json:"total_errors"`
	Nodes        []NodeResponse   `json:"nodes"`
	Breaches     []BreachResponse `json:"breaches"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
