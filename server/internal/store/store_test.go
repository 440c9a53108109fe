package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidianstack/seedmonitor/pkg/types"
)

func addr(host string) types.NodeAddress {
	return types.NodeAddress{Host: host, Port: 8000}
}

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestPutAndGet(t *testing.T) {
	st := New()
	st.Put(addr("a.onion"), &types.MetricsRecord{
		RequestDurations: []time.Duration{time.Second},
		ErrorMessages:    []string{""},
	})

	rec, ok := st.Get(addr("a.onion"))
	require.True(t, ok)
	assert.Equal(t, []time.Duration{time.Second}, rec.RequestDurations)
}

func TestGet_Missing(t *testing.T) {
	_, ok := New().Get(addr("unknown"))
	assert.False(t, ok)
}

func TestPut_Overwrites(t *testing.T) {
	st := New()
	st.Put(addr("a"), &types.MetricsRecord{ErrorMessages: []string{"boom"}})
	st.Put(addr("a"), &types.MetricsRecord{ErrorMessages: []string{""}})

	rec, _ := st.Get(addr("a"))
	assert.Equal(t, []string{""}, rec.ErrorMessages)
	assert.Equal(t, 1, st.Count())
}

func TestPut_StoresCopy(t *testing.T) {
	st := New()
	rec := &types.MetricsRecord{ReceivedObjectsList: []map[string]int{{"offers": 3}}}
	st.Put(addr("a"), rec)

	rec.ReceivedObjectsList[0]["offers"] = 99

	got, _ := st.Get(addr("a"))
	assert.Equal(t, 3, got.ReceivedObjectsList[0]["offers"], "stored data changed through caller pointer")
}

func TestAppend_CreatesAndExtends(t *testing.T) {
	st := New()
	st.Append(addr("a"), types.Sample{Duration: 2 * time.Second})
	st.Append(addr("a"), types.Sample{Duration: time.Second, Error: "timeout"})
	st.Append(addr("a"), types.Sample{Duration: time.Second, ReceivedObjects: map[string]int{"offers": 1}})

	rec, ok := st.Get(addr("a"))
	require.True(t, ok)
	assert.Len(t, rec.RequestDurations, 3)
	assert.Equal(t, []string{"", "timeout", ""}, rec.ErrorMessages)
	assert.Len(t, rec.ReceivedObjectsList, 1)
}

func TestCount(t *testing.T) {
	st := New()
	assert.Zero(t, st.Count())
	st.Append(addr("a"), types.Sample{})
	st.Append(addr("b"), types.Sample{})
	st.Append(addr("a"), types.Sample{})
	assert.Equal(t, 2, st.Count())
}

func TestSnapshot_InsertionOrder(t *testing.T) {
	st := New()
	for _, h := range []string{"c", "a", "b"} {
		st.Append(addr(h), types.Sample{})
	}
	// Replacing a record keeps its first position.
	st.Put(addr("c"), &types.MetricsRecord{})

	entries := st.Snapshot()
	require.Len(t, entries, 3)
	hosts := make([]string, len(entries))
	for i, e := range entries {
		hosts[i] = e.Address.Host
	}
	assert.Equal(t, []string{"c", "a", "b"}, hosts)
}

func TestSnapshot_IsolatedFromWriters(t *testing.T) {
	st := New()
	st.Append(addr("a"), types.Sample{ReceivedObjects: map[string]int{"offers": 1}})

	snap := st.Snapshot()
	st.Append(addr("a"), types.Sample{ReceivedObjects: map[string]int{"offers": 2}})

	assert.Len(t, snap[0].Record.ReceivedObjectsList, 1, "snapshot saw a later append")
}

func TestUpdatedAt(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	st := New()
	st.now = fixedClock(base)
	st.Append(addr("a"), types.Sample{})

	assert.True(t, st.Snapshot()[0].UpdatedAt.Equal(base))
}

func TestLastCheckStarted(t *testing.T) {
	st := New()
	require.True(t, st.LastCheckStarted().IsZero())

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st.MarkCheckStarted(ts)
	assert.True(t, st.LastCheckStarted().Equal(ts))
}

func TestConcurrentAppends(t *testing.T) {
	st := New()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.Append(addr("concurrent"), types.Sample{Duration: time.Millisecond, ReceivedObjects: map[string]int{"k": 1}})
		}()
	}
	wg.Wait()

	rec, _ := st.Get(addr("concurrent"))
	assert.Len(t, rec.RequestDurations, 100)
	assert.Len(t, rec.ErrorMessages, 100)
	assert.Len(t, rec.ReceivedObjectsList, 100)
}

func TestConcurrentMixedOps(t *testing.T) {
	st := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			st.Append(addr("a"), types.Sample{Error: "x"})
		}()
		go func() {
			defer wg.Done()
			for _, e := range st.Snapshot() {
				assert.Equal(t, len(e.Record.RequestDurations), len(e.Record.ErrorMessages), "torn read")
			}
		}()
	}
	wg.Wait()
}
