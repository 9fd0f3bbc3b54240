// Package main is the entry point for the terminal host.
//
// The server hosts interactive shells behind pseudo-terminals and exposes
// them to a browser UI as tabs over a WebSocket.
//
// Architecture:
//
//	UI (xterm.js) ⇄ WebSocket /terminal → tab coordinator → session registry → pty
//
// The server provides:
//   - One view per WebSocket connection, each with its own tabs
//   - Health, view listing and Prometheus metrics over HTTP
//   - Rate limiting and an origin allow-list
//
// Configuration:
//   - Defaults for local use
//   - Optional YAML or TOML file named by TERMHOST_CONFIG
//   - Environment variables (override the file)
//   - CLI flags (override everything)
//
// Usage:
//
//	./server -port 8000
//	TERMHOST_CONFIG=termhost.yaml ./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown, killing every shell
package main
