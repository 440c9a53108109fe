package api

import (
	"fmt"
	"sort"

	"github.com/obsidianstack/seedmonitor/server/internal/compute"
	"github.com/obsidianstack/seedmonitor/server/internal/report"
)

// DiagnosticHint is one human-readable insight about a node.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "info" | "warning" | "critical".
	Level  string `json:"level"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	// Value is an optional number associated with the hint.
	Value *float64 `json:"value,omitempty"`
}

var levelRank = map[string]int{"critical": 0, "warning": 1, "info": 2}

// computeDiagnostics derives hints from a report row, critical first.
func computeDiagnostics(row report.Row) []DiagnosticHint {
	var hints []DiagnosticHint

	if row.NumRequests == 0 {
		return []DiagnosticHint{{
			Key:    "no_requests",
			Level:  "info",
			Title:  "Not probed yet",
			Detail: "No probe result has been received for this node since the monitor started.",
		}}
	}

	if row.Failing() {
		hints = append(hints, DiagnosticHint{
			Key:    "request_failing",
			Level:  "critical",
			Title:  "Requests failing",
			Detail: fmt.Sprintf("The most recent failure was %q at request %d.", row.LastError.Message, row.LastError.Index),
		})
	} else if row.NumErrors > 0 {
		v := float64(row.NumErrors)
		hints = append(hints, DiagnosticHint{
			Key:    "errors_seen",
			Level:  "warning",
			Title:  fmt.Sprintf("%d failed requests", row.NumErrors),
			Detail: fmt.Sprintf("%d of %d requests failed. The node has answered since.", row.NumErrors, row.NumRequests),
			Value:  &v,
		})
	}

	if row.RTTSeverity == compute.SeverityCritical {
		v := row.RTTAverage
		hints = append(hints, DiagnosticHint{
			Key:    "slow_rtt",
			Level:  "warning",
			Title:  "Slow round trips",
			Detail: fmt.Sprintf("Requests take %.1fs on average.", row.RTTAverage),
			Value:  &v,
		})
	}

	if !row.HasData() {
		hints = append(hints, DiagnosticHint{
			Key:    "no_data",
			Level:  "info",
			Title:  "No data yet",
			Detail: "No request to this node has returned data, so it is not part of the fleet baseline.",
		})
	}

	for _, d := range row.Deviations {
		if !d.Defined || d.Severity == compute.SeverityNominal {
			continue
		}
		level := "warning"
		if d.Breach {
			level = "critical"
		}
		v := d.Percent
		hints = append(hints, DiagnosticHint{
			Key:    "deviation_" + d.Key,
			Level:  level,
			Title:  fmt.Sprintf("%s at %.2f%%", d.Key, d.Percent),
			Detail: fmt.Sprintf("The node reports %d %s, %.2f%% of the fleet average.", d.Value, d.Key, d.Percent),
			Value:  &v,
		})
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank[hints[i].Level] < levelRank[hints[j].Level]
	})
	return hints
}
