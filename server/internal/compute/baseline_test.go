package compute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidianstack/seedmonitor/pkg/types"
)

func recordWith(samples ...map[string]int) *types.MetricsRecord {
	r := &types.MetricsRecord{}
	for _, s := range samples {
		r.Append(types.Sample{ReceivedObjects: s})
	}
	return r
}

func TestComputeBaseline_MeanOfLatestSamples(t *testing.T) {
	recs := []*types.MetricsRecord{
		recordWith(map[string]int{"k": 1000}, map[string]int{"k": 10}),
		recordWith(map[string]int{"k": 20}),
		recordWith(map[string]int{"k": 30}),
	}

	b := ComputeBaseline(recs)
	require.Equal(t, 3, b.Contributors)

	avg, ok := b.Average("k")
	require.True(t, ok)
	assert.InDelta(t, 20.0, avg, 1e-9)
}

func TestComputeBaseline_SkipsNodesWithoutData(t *testing.T) {
	noData := &types.MetricsRecord{}
	noData.Append(types.Sample{Error: "timeout"})

	b := ComputeBaseline([]*types.MetricsRecord{noData, nil, recordWith(map[string]int{"k": 8})})
	assert.Equal(t, 1, b.Contributors)

	avg, ok := b.Average("k")
	require.True(t, ok)
	assert.Equal(t, 8.0, avg)
}

func TestComputeBaseline_ContributorCountIsSharedAcrossKeys(t *testing.T) {
	b := ComputeBaseline([]*types.MetricsRecord{
		recordWith(map[string]int{"a": 10, "b": 40}),
		recordWith(map[string]int{"a": 30}),
	})
	require.Equal(t, 2, b.Contributors)

	a, ok := b.Average("a")
	require.True(t, ok)
	assert.Equal(t, 20.0, a)

	// "b" was reported by one node but is still divided by both.
	bb, ok := b.Average("b")
	require.True(t, ok)
	assert.Equal(t, 20.0, bb)
}

func TestComputeBaseline_NoContributors(t *testing.T) {
	b := ComputeBaseline([]*types.MetricsRecord{{}, {}})
	assert.Zero(t, b.Contributors)
	assert.Empty(t, b.Averages)

	_, ok := b.Average("k")
	assert.False(t, ok)

	empty := ComputeBaseline(nil)
	_, ok = empty.Average("anything")
	assert.False(t, ok)
}

func TestBaseline_ZeroAverageIsUndefined(t *testing.T) {
	b := ComputeBaseline([]*types.MetricsRecord{recordWith(map[string]int{"k": 0})})
	_, ok := b.Average("k")
	assert.False(t, ok)
}
