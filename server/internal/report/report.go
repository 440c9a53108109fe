package report

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/obsidianstack/seedmonitor/pkg/types"
	"github.com/obsidianstack/seedmonitor/server/internal/compute"
	"github.com/obsidianstack/seedmonitor/server/internal/store"
)

// DefaultSlowRTT is the average round trip time at or above which the RTT
// cell is rendered in the alert color.
const DefaultSlowRTT = 30 * time.Second

// Directory resolves display and alerting identities for a node. Both lookups
// must return a value for every address, falling back to a placeholder.
type Directory interface {
	Operator(addr types.NodeAddress) string
	AlertRecipient(addr types.NodeAddress) string
}

// Options tunes a Builder. Zero values select the defaults.
type Options struct {
	Thresholds compute.Thresholds
	SlowRTT    time.Duration
	RowRule    RowRule
	// Location is used to render the check timestamp. Defaults to UTC.
	Location *time.Location
}

// Report is the result of one report pass.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	// CheckStarted is the start of the probe cycle the report describes,
	// or GeneratedAt when no cycle start has been announced.
	CheckStarted time.Time `json:"check_started"`
	TotalErrors  int       `json:"total_errors"`
	Rows         []Row     `json:"rows"`
	// Breaches lists every deviation that crossed the dispatch threshold,
	// in row order. The report itself never sends anything.
	Breaches []Breach `json:"breaches"`
}

// Row is the rendered state of one node.
type Row struct {
	Operator    string              `json:"operator"`
	Address     types.NodeAddress   `json:"address"`
	NumRequests int                 `json:"num_requests"`
	NumErrors   int                 `json:"num_errors"`
	LastError   *LastError          `json:"last_error,omitempty"`
	RTTAverage  float64             `json:"rtt_average_seconds"`
	RTTSeverity compute.Severity    `json:"rtt_severity"`
	RowSeverity compute.Severity    `json:"row_severity"`
	LastData    map[string]int      `json:"last_data"`
	Deviations  []compute.Deviation `json:"deviations,omitempty"`
	Durations   []time.Duration     `json:"durations"`
	AllData     []map[string]int    `json:"all_data"`
}

// HasData reports whether the node returned at least one data sample.
func (r Row) HasData() bool { return len(r.AllData) > 0 }

// Failing reports whether the node's most recent request failed. It does not
// depend on the row rule.
func (r Row) Failing() bool {
	return r.LastError != nil && r.LastError.Index == r.NumRequests-1
}

// LastError locates the most recent failed request of a node.
type LastError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

func (e LastError) String() string {
	return fmt.Sprintf("Error at request %d: %s", e.Index, e.Message)
}

// Breach is a deviation that must be reported to the node's alert recipient.
type Breach struct {
	Address   types.NodeAddress `json:"address"`
	Operator  string            `json:"operator"`
	Recipient string            `json:"recipient"`
	Key       string            `json:"key"`
	Value     int               `json:"value"`
	Percent   float64           `json:"percent"`
}

// Builder produces Reports from store snapshots.
type Builder struct {
	dir        Directory
	classifier *compute.Classifier
	slowRTT    time.Duration
	rowRule    RowRule
	loc        *time.Location
}

// NewBuilder returns a Builder resolving identities through dir.
func NewBuilder(dir Directory, opts Options) *Builder {
	t := opts.Thresholds
	if t == (compute.Thresholds{}) {
		t = compute.DefaultThresholds()
	}
	b := &Builder{
		dir:        dir,
		classifier: compute.NewClassifier(t),
		slowRTT:    opts.SlowRTT,
		rowRule:    opts.RowRule,
		loc:        opts.Location,
	}
	if b.slowRTT <= 0 {
		b.slowRTT = DefaultSlowRTT
	}
	if b.rowRule == "" {
		b.rowRule = RowRuleLegacy
	}
	if b.loc == nil {
		b.loc = time.UTC
	}
	return b
}

// Build runs one report pass over snap. snap is not modified.
func (b *Builder) Build(snap []store.Entry, checkStarted, now time.Time) *Report {
	type item struct {
		operator string
		entry    store.Entry
	}
	items := make([]item, len(snap))
	for i, e := range snap {
		items[i] = item{operator: b.dir.Operator(e.Address), entry: e}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].operator < items[j].operator })

	if checkStarted.IsZero() {
		checkStarted = now
	}
	rep := &Report{
		GeneratedAt:  now.In(b.loc),
		CheckStarted: checkStarted.In(b.loc),
		Rows:         make([]Row, 0, len(items)),
	}

	records := make([]*types.MetricsRecord, len(items))
	for i, it := range items {
		records[i] = sanitize(it.entry.Address, it.entry.Record)
	}
	baseline := compute.ComputeBaseline(records)

	for i, it := range items {
		row := b.buildRow(it.operator, it.entry.Address, records[i], baseline)
		rep.TotalErrors += row.NumErrors
		for _, d := range row.Deviations {
			if !d.Breach {
				continue
			}
			rep.Breaches = append(rep.Breaches, Breach{
				Address:   row.Address,
				Operator:  row.Operator,
				Recipient: b.dir.AlertRecipient(row.Address),
				Key:       d.Key,
				Value:     d.Value,
				Percent:   d.Percent,
			})
		}
		rep.Rows = append(rep.Rows, row)
	}
	return rep
}

func (b *Builder) buildRow(operator string, addr types.NodeAddress, rec *types.MetricsRecord, baseline compute.Baseline) Row {
	row := Row{
		Operator:    operator,
		Address:     addr,
		NumRequests: len(rec.RequestDurations),
		Durations:   rec.RequestDurations,
		AllData:     rec.ReceivedObjectsList,
		LastData:    map[string]int{},
	}

	lastErrorIndex := -1
	for i, msg := range rec.ErrorMessages {
		if msg == "" {
			continue
		}
		row.NumErrors++
		lastErrorIndex = i
	}
	if lastErrorIndex >= 0 {
		row.LastError = &LastError{Index: lastErrorIndex, Message: rec.ErrorMessages[lastErrorIndex]}
	}

	row.RTTAverage = averageSeconds(rec.RequestDurations)
	row.RTTSeverity = compute.SeverityNominal
	if row.RTTAverage >= b.slowRTT.Seconds() {
		row.RTTSeverity = compute.SeverityCritical
	}

	row.RowSeverity = compute.SeverityNominal
	if b.rowRule.flagged(rec.ErrorMessages, lastErrorIndex, row.NumErrors) {
		row.RowSeverity = compute.SeverityCritical
	}

	if last := rec.LatestData(); last != nil {
		row.LastData = last
		row.Deviations = b.classifier.Classify(last, baseline)
	}
	return row
}

// sanitize truncates the duration and error sequences to a common length.
func sanitize(addr types.NodeAddress, rec *types.MetricsRecord) *types.MetricsRecord {
	if rec == nil {
		return &types.MetricsRecord{}
	}
	nd, ne := len(rec.RequestDurations), len(rec.ErrorMessages)
	if nd == ne {
		return rec
	}
	slog.Warn("report: duration and error counts differ, truncating",
		"node", addr.String(), "durations", nd, "errors", ne)
	n := min(nd, ne)
	out := *rec
	out.RequestDurations = rec.RequestDurations[:n]
	out.ErrorMessages = rec.ErrorMessages[:n]
	return &out
}

func averageSeconds(ds []time.Duration) float64 {
	if len(ds) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range ds {
		sum += d
	}
	return sum.Seconds() / float64(len(ds))
}
