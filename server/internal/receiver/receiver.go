package receiver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/obsidianstack/seedmonitor/pkg/types"
	"github.com/obsidianstack/seedmonitor/server/internal/metrics"
	"github.com/obsidianstack/seedmonitor/server/internal/store"
)

// maxBodyBytes caps a single ingestion request.
const maxBodyBytes = 1 << 20

// maxDurationMS is the largest duration_ms that fits a time.Duration.
const maxDurationMS = math.MaxInt64 / int64(time.Millisecond)

// ProbeRequest is the body of POST /api/v1/probes.
type ProbeRequest struct {
	// Node is the probed node as host:port.
	Node       string `json:"node"`
	DurationMS int64  `json:"duration_ms"`
	// Error is empty when the attempt succeeded.
	Error string `json:"error"`
	// ReceivedObjects is omitted when the attempt returned no data.
	ReceivedObjects map[string]int `json:"received_objects"`
}

// CheckRequest is the body of POST /api/v1/checks.
type CheckRequest struct {
	// StartedAt is RFC3339. Empty means now.
	StartedAt string `json:"started_at"`
}

// Receiver accepts probe results and writes them to the store.
type Receiver struct {
	store   *store.Store
	metrics *metrics.Metrics
	now     func() time.Time
	mux     *http.ServeMux
}

// New creates a Receiver that writes accepted probe results to st.
// m may be nil.
func New(st *store.Store, m *metrics.Metrics) *Receiver {
	r := &Receiver{store: st, metrics: m, now: time.Now, mux: http.NewServeMux()}
	r.mux.HandleFunc("/api/v1/probes", r.probe)
	r.mux.HandleFunc("/api/v1/checks", r.check)
	return r
}

func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Receiver) probe(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body ProbeRequest
	if err := decode(w, req, &body); err != nil {
		r.reject(w, err)
		return
	}
	addr, sample, err := body.toSample()
	if err != nil {
		r.reject(w, err)
		return
	}

	r.store.Append(addr, sample)
	r.metrics.ProbeReceived(metrics.OutcomeAccepted)

	slog.Debug("receiver: probe stored",
		"node", addr.String(),
		"duration", sample.Duration,
		"failed", sample.Error != "",
		"keys", len(sample.ReceivedObjects),
	)

	jsonResp(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (r *Receiver) check(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body CheckRequest
	if err := decode(w, req, &body); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	started := r.now()
	if body.StartedAt != "" {
		t, err := time.Parse(time.RFC3339, body.StartedAt)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, "started_at must be RFC3339")
			return
		}
		started = t
	}

	r.store.MarkCheckStarted(started)
	slog.Info("receiver: probe cycle started", "started_at", started)
	w.WriteHeader(http.StatusNoContent)
}

func (r *Receiver) reject(w http.ResponseWriter, err error) {
	r.metrics.ProbeReceived(metrics.OutcomeRejected)
	slog.Warn("receiver: probe rejected", "err", err)
	jsonErr(w, http.StatusBadRequest, err.Error())
}

// toSample validates the request and converts it.
func (p ProbeRequest) toSample() (types.NodeAddress, types.Sample, error) {
	addr, err := types.ParseNodeAddress(p.Node)
	if err != nil {
		return types.NodeAddress{}, types.Sample{}, fmt.Errorf("node: %w", err)
	}
	if p.DurationMS < 0 {
		return types.NodeAddress{}, types.Sample{}, errors.New("duration_ms must not be negative")
	}
	if p.DurationMS > maxDurationMS {
		return types.NodeAddress{}, types.Sample{}, fmt.Errorf("duration_ms must not exceed %d", maxDurationMS)
	}
	return addr, types.Sample{
		Duration:        time.Duration(p.DurationMS) * time.Millisecond,
		Error:           p.Error,
		ReceivedObjects: p.ReceivedObjects,
	}, nil
}

func decode(w http.ResponseWriter, req *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, map[string]string{"error": msg})
}
