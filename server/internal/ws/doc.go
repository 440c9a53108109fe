// Package ws streams seed monitor reports to WebSocket clients.
//
// New(reports, store, interval) creates a Hub. Hub.Run(ctx) rebroadcasts the
// latest report every interval until ctx is cancelled, then closes all
// connections. Hub.Publish pushes the latest report right after a report pass.
// Hub.ServeHTTP upgrades a request, sends the latest report immediately, then
// streams updates.
//
// Message format sent to clients:
//
//	{
//	  "event": "report",
//	  "data":  { /* same schema as GET /api/v1/snapshot */ }
//	}
//
// The upgrader accepts all origins. The hub is mounted at /ws/stream.
package ws
