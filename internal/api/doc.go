// Package api hosts the HTTP server, middleware, and handlers for the MIDI
// proxy. Notable routes:
//   - GET /getMidi?url=... relays one remote file as lowercase hex text.
//   - GET /bitmidi/search?q=... scrapes the upstream search site and returns
//     aggregated JSON records.
//   - GET /healthz / readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - everything else is served from the static asset directory.
package api
