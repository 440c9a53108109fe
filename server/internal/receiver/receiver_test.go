package receiver_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidianstack/seedmonitor/pkg/types"
	"github.com/obsidianstack/seedmonitor/server/internal/auth"
	"github.com/obsidianstack/seedmonitor/server/internal/metrics"
	"github.com/obsidianstack/seedmonitor/server/internal/receiver"
	"github.com/obsidianstack/seedmonitor/server/internal/store"
)

var seed1 = types.NodeAddress{Host: "seed1.onion", Port: 8000}

// startServer serves a receiver behind the given middleware.
func startServer(t *testing.T, mw func(http.Handler) http.Handler) (*httptest.Server, *store.Store, *metrics.Metrics) {
	t.Helper()
	st := store.New()
	m := metrics.New()
	srv := httptest.NewServer(mw(receiver.New(st, m)))
	t.Cleanup(srv.Close)
	return srv, st, m
}

func allowAll(next http.Handler) http.Handler { return next }

func post(t *testing.T, srv *httptest.Server, path, body string, header ...string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestProbe_StoresSample(t *testing.T) {
	srv, st, m := startServer(t, allowAll)

	require.Equal(t, http.StatusAccepted, post(t, srv, "/api/v1/probes",
		`{"node":"seed1.onion:8000","duration_ms":1500,"received_objects":{"offers":12}}`))
	require.Equal(t, http.StatusAccepted, post(t, srv, "/api/v1/probes",
		`{"node":"seed1.onion:8000","duration_ms":20,"error":"timeout"}`))

	rec, ok := st.Get(seed1)
	require.True(t, ok, "node not stored")
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 20 * time.Millisecond}, rec.RequestDurations)
	assert.Equal(t, []string{"", "timeout"}, rec.ErrorMessages)
	assert.Equal(t, []map[string]int{{"offers": 12}}, rec.ReceivedObjectsList)

	totals, err := m.Totals()
	require.NoError(t, err)
	assert.Equal(t, 2.0, totals["seedmonitor_probes_received_total"])
}

func TestProbe_Invalid(t *testing.T) {
	srv, st, m := startServer(t, allowAll)

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"node":`},
		{"missing node", `{"duration_ms":10}`},
		{"no port", `{"node":"seed1.onion","duration_ms":10}`},
		{"negative duration", `{"node":"seed1.onion:8000","duration_ms":-1}`},
		{"duration overflows", `{"node":"seed1.onion:8000","duration_ms":9223372036855}`},
		{"duration far out of range", `{"node":"seed1.onion:8000","duration_ms":9000000000000000000}`},
		{"unknown field", `{"node":"seed1.onion:8000","latency":3}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, post(t, srv, "/api/v1/probes", tc.body))
		})
	}
	assert.Zero(t, st.Count())

	totals, err := m.Totals()
	require.NoError(t, err)
	assert.Equal(t, float64(len(tests)), totals["seedmonitor_probes_received_total"])
}

func TestProbe_LargestDurationAccepted(t *testing.T) {
	srv, st, _ := startServer(t, allowAll)

	require.Equal(t, http.StatusAccepted, post(t, srv, "/api/v1/probes",
		`{"node":"seed1.onion:8000","duration_ms":9223372036854}`))

	rec, ok := st.Get(seed1)
	require.True(t, ok)
	assert.Equal(t, 9223372036854*time.Millisecond, rec.RequestDurations[0])
	assert.Positive(t, rec.RequestDurations[0])
}

func TestProbe_MethodNotAllowed(t *testing.T) {
	srv, _, _ := startServer(t, allowAll)
	resp, err := http.Get(srv.URL + "/api/v1/probes")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCheck_MarksCycleStart(t *testing.T) {
	srv, st, _ := startServer(t, allowAll)

	require.Equal(t, http.StatusNoContent, post(t, srv, "/api/v1/checks", `{"started_at":"2024-01-02T15:04:05Z"}`))
	want := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	assert.True(t, st.LastCheckStarted().Equal(want), "got %v, want %v", st.LastCheckStarted(), want)
}

func TestCheck_DefaultsToNow(t *testing.T) {
	srv, st, _ := startServer(t, allowAll)

	before := time.Now()
	require.Equal(t, http.StatusNoContent, post(t, srv, "/api/v1/checks", `{}`))
	assert.False(t, st.LastCheckStarted().Before(before))
}

func TestCheck_BadTimestamp(t *testing.T) {
	srv, _, _ := startServer(t, allowAll)
	assert.Equal(t, http.StatusBadRequest, post(t, srv, "/api/v1/checks", `{"started_at":"yesterday"}`))
}

func TestProbe_APIKey(t *testing.T) {
	srv, st, _ := startServer(t, auth.APIKey("apikey", "x-api-key", "supersecret"))
	body := `{"node":"seed1.onion:8000","duration_ms":5}`

	assert.Equal(t, http.StatusUnauthorized, post(t, srv, "/api/v1/probes", body), "no key")
	assert.Equal(t, http.StatusUnauthorized, post(t, srv, "/api/v1/probes", body, "x-api-key", "wrong"), "wrong key")
	assert.Equal(t, http.StatusAccepted, post(t, srv, "/api/v1/probes", body, "x-api-key", "supersecret"), "right key")
	assert.Equal(t, 1, st.Count())
}
