/*
Package monitoring provides metrics collection for termhost.

# Overview

Metrics are Prometheus collectors registered on a registry owned by the
Metrics value, so several collectors can coexist (one per test) without
clashing on the global default registry.

# Features

- HTTP request metrics (latency, status)
- Session lifecycle metrics (active, created, ended by reason)
- Spawn latency and spawn errors by kind
- Capacity rejections, output volume, subscriber faults
- Tab and WebSocket connection metrics
- Uptime

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics)
	// ... spawn ...
	timer.Stop("ok")
*/
package monitoring
