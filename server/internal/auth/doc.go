// Package auth provides API key middleware for the ingestion endpoints.
//
// APIKey(mode, header, key) wraps an http.Handler and rejects requests whose
// header value does not match key with 401 Unauthorized.
//
// When mode != "apikey" or key == "", all requests pass through (useful for
// local development with auth disabled).
package auth
