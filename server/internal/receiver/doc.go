// Package receiver implements the HTTP ingestion boundary used by the probe
// source.
//
//	POST /api/v1/probes  one probe attempt against one node (202 Accepted)
//	POST /api/v1/checks  start of a probe cycle (204 No Content)
//
// Receiver validates each request structurally and appends it to the store.
// Authentication is enforced upstream by the auth middleware, so the receiver
// itself only performs structural validation.
package receiver
