package compute

import (
	"math"
	"sort"
)

// Severity is the classification tier of one deviation or one report cell.
type Severity string

const (
	SeverityNominal  Severity = "nominal"
	SeverityElevated Severity = "elevated"
	SeverityCritical Severity = "critical"
)

// Default thresholds, in percentage points away from the 100% baseline.
const (
	DefaultElevatedPct = 5.0
	DefaultCriticalPct = 10.0
	DefaultDispatchPct = 20.0
)

// Thresholds tunes the classifier. CriticalPct drives rendering and
// DispatchPct drives alerting; they are deliberately separate gates.
type Thresholds struct {
	ElevatedPct float64
	CriticalPct float64
	DispatchPct float64
}

// DefaultThresholds returns the stock 5 / 10 / 20 thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ElevatedPct: DefaultElevatedPct,
		CriticalPct: DefaultCriticalPct,
		DispatchPct: DefaultDispatchPct,
	}
}

// Deviation is the classification of one data key of a node's latest sample.
type Deviation struct {
	Key   string `json:"key"`
	Value int    `json:"value"`

	// Defined is false when the baseline has no usable average for Key.
	// Percent is then zero and Severity is nominal.
	Defined bool    `json:"defined"`
	Percent float64 `json:"percent"`

	Severity Severity `json:"severity"`

	// Breach reports whether the deviation crosses the dispatch threshold.
	Breach bool `json:"breach"`
}

// Classifier maps deviations to severities using fixed thresholds.
type Classifier struct {
	t Thresholds
}

// NewClassifier returns a Classifier using t.
func NewClassifier(t Thresholds) *Classifier {
	return &Classifier{t: t}
}

// Classify compares every key of latest against b. Results are ordered by key.
func (c *Classifier) Classify(latest map[string]int, b Baseline) []Deviation {
	keys := make([]string, 0, len(latest))
	for k := range latest {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Deviation, 0, len(keys))
	for _, k := range keys {
		d := Deviation{Key: k, Value: latest[k], Severity: SeverityNominal}
		avg, ok := b.Average(k)
		if ok {
			d.Defined = true
			d.Percent = roundTo(float64(d.Value)/avg*100, 2)
			devAbs := math.Abs(d.Percent - 100)
			d.Severity = c.severity(devAbs)
			d.Breach = devAbs >= c.t.DispatchPct
		}
		out = append(out, d)
	}
	return out
}

func (c *Classifier) severity(devAbs float64) Severity {
	switch {
	case devAbs < c.t.ElevatedPct:
		return SeverityNominal
	case devAbs < c.t.CriticalPct:
		return SeverityElevated
	default:
		return SeverityCritical
	}
}

// roundTo rounds v to the given number of decimal places, halves away from zero.
func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
