// Package config provides 12-factor configuration management for termhost.
//
// Values are layered: Default(), then an optional YAML or TOML file named by
// TERMHOST_CONFIG, then environment variables.
//
// Configuration Sections:
//   - Server: HTTP listener, allowed WebSocket origins, shutdown timeout
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting for HTTP endpoints
//   - Terminal: shell, geometry, tab limit, workspace roots, scrollback
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, ALLOWED_ORIGINS, SHUTDOWN_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - TERMINAL_SHELL, TERMINAL_SHELL_ARGS, TERMINAL_COLS, TERMINAL_ROWS,
//     TERMINAL_MAX_TABS, TERMINAL_WORKSPACE_ROOTS, TERMINAL_SCROLLBACK_BYTES,
//     TERMINAL_KILL_GRACE, TERMINAL_ENV
package config
