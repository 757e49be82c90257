// Package cmd defines the CLI for the midi-proxy executable.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes /getMidi (single file relay returned as lowercase hex),
//     /bitmidi/search (paginated scrape of the upstream search site), health and metrics endpoints, and a
//     static asset directory.
//   - Search pipeline: the pagination walker fetches listing pages sequentially and harvests detail links; the
//     aggregator fans detail pages out to a bounded worker pool drawn from an in-memory queue, extracts title,
//     download link and size, and sorts the records by title.
//   - Fetching: every outbound GET goes through the Colly-based fetcher with a per-call timeout and a capped
//     redirect policy. Non-2xx answers surface as typed status errors.
//   - Configuration & plumbing: Viper populates config from a YAML file, a .env file and MIDIPROXY_* env vars;
//     zap provides structured logging; Prometheus metrics are exported at /metrics.
//
// Quick checklist:
//   - Configure env vars: PORT or MIDIPROXY_SERVER_PORT, MIDIPROXY_UPSTREAM_BASE_URL,
//     MIDIPROXY_SEARCH_CONCURRENCY_CEILING, MIDIPROXY_LOGGING_DEVELOPMENT=false for JSON logs.
//   - Run locally: go run . serve --config config.yaml (or rely solely on env overrides).
//   - One-off search: go run . search "zelda" --max-pages 2
package cmd
