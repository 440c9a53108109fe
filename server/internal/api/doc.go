// Package api implements the read-only HTTP REST API of the seed monitor.
//
// New(deps) returns an http.Handler that serves:
//
//	GET /api/v1/health        overall state, node and error counts, metric totals
//	GET /api/v1/nodes         all nodes of the latest report ([]NodeResponse)
//	GET /api/v1/nodes/{addr}  single node by host:port; 404 if not in the report
//	GET /api/v1/report        latest text report (text/plain)
//	GET /api/v1/report.html   latest HTML report (text/html)
//	GET /api/v1/alerts        retained alert history, newest first
//	GET /api/v1/snapshot      full JSON dump of the latest report
//	GET /api/v1/export        raw store contents, readable by store.ReadDump
//
// JSON endpoints respond with Content-Type: application/json and every
// endpoint returns 405 for non-GET methods. The report endpoints return 503
// until the first report pass has completed.
package api
