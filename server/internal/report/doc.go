// Package report turns a store snapshot into a Report: the per-node rows, the
// fleet-wide error count and the alert breaches of one pass. A Report renders
// itself as plain text (Text) and as an HTML table (HTML); both renderers read
// the same Report value so they always agree on nodes, keys and totals.
package report
