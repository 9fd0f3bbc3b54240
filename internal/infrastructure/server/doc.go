// Package server assembles the terminal host: config, logging, metrics,
// the pty backend, the WebSocket host and the HTTP routes.
//
// Routes:
//
//	GET /              service info
//	GET /health        liveness and pty availability
//	GET /terminal      WebSocket, one view per connection
//	GET /views         open views and their tabs
//	GET /metrics       Prometheus exposition
//	GET /metrics/json  counter snapshot
//
// Shutdown closes every view before stopping the listener, so no shell
// outlives the process.
package server
