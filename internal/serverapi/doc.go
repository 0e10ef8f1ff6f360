// Package serverapi is the HTTP client for the ESL management server.
//
// It covers the three device-facing endpoints:
//
//	GET  /api/devices/mac/{mac}/config    - configuration envelope (5s timeout)
//	POST /api/devices/heartbeat           - health report, returns config_version (5s timeout)
//	GET  /api/smartprinter/mac/{mac}/data - display content record (10s timeout)
//
// All calls are synchronous and blocking with fixed timeouts; there is
// no retry and no cancellation beyond the timeout. Transport failures
// and malformed responses are reported through the APIError taxonomy
// and are never fatal: callers fall back to last-known-good state and
// the heartbeat loop's schedule provides the retry cadence.
package serverapi
