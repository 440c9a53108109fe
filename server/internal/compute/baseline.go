package compute

import "github.com/obsidianstack/seedmonitor/pkg/types"

// Baseline holds the fleet-wide average of every data key for one report pass.
type Baseline struct {
	// Averages maps a data key to its fleet average.
	Averages map[string]float64

	// Contributors is the number of nodes with at least one data sample.
	// It is the divisor for every key, whether or not a given node reported
	// that key.
	Contributors int
}

// ComputeBaseline averages each data key over the latest data sample of every
// record that has one. Records without data do not contribute.
func ComputeBaseline(records []*types.MetricsRecord) Baseline {
	sums := make(map[string]float64)
	contributors := 0

	for _, rec := range records {
		if rec == nil {
			continue
		}
		last := rec.LatestData()
		if last == nil {
			continue
		}
		contributors++
		for k, v := range last {
			sums[k] += float64(v)
		}
	}

	b := Baseline{Averages: make(map[string]float64, len(sums)), Contributors: contributors}
	if contributors == 0 {
		return b
	}
	for k, sum := range sums {
		b.Averages[k] = sum / float64(contributors)
	}
	return b
}

// Average returns the baseline for key. ok is false when no usable average
// exists: no contributing nodes, the key was never reported, or the average is
// zero and cannot serve as a divisor.
func (b Baseline) Average(key string) (avg float64, ok bool) {
	if b.Contributors == 0 {
		return 0, false
	}
	avg, ok = b.Averages[key]
	if !ok || avg == 0 {
		return 0, false
	}
	return avg, true
}
