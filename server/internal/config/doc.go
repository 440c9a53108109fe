// Package config loads the seed monitor configuration from config.yaml.
//
// Config fields:
//   - Server.HTTPPort            port for ingestion, the REST API and WebSocket feed (default 8080)
//   - Server.Auth                API key protection for the ingestion endpoints
//   - Server.Report.Interval     time between report passes (default 1m)
//   - Server.Report.Timezone     zone the check timestamp is rendered in (default CET)
//   - Server.Report.RowRule      legacy or trailing (default legacy)
//   - Server.Report.Thresholds   deviation tiers, dispatch gate and slow RTT
//   - Server.Alerts              default recipient, send timeout and webhooks
//   - SeedNodes                  operator and alert recipient per node address
//
// Load(path) applies defaults before unmarshalling, then validates. Watch
// reloads the file on change.
package config
