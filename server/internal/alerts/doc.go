// Package alerts delivers deviation alerts. The Dispatcher turns report
// breaches into one notification each and sends them concurrently through a
// Notifier; WebhookNotifier posts them to Slack, Teams, or generic HTTP
// webhooks. A failed send is logged and counted but never affects other sends
// or the report pass that produced the breach.
package alerts
