// Package types defines the shared Go types used by the ingestion path and the
// report path: the node identity (NodeAddress) and the accumulated probe
// history for one node (MetricsRecord).
//
// A MetricsRecord holds three aligned sequences. RequestDurations and
// ErrorMessages carry one element per probe attempt; ReceivedObjectsList
// carries one element per attempt that returned data and may be shorter.
package types
