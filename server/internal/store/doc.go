// Package store manages the in-memory probe history of every monitored node.
// It provides a thread-safe keyed container that the ingestion path appends
// to and the report path snapshots, one consistent copy per node. Export and Import move the whole store
// through JSON so a report can be rendered away from the running server.
package store
