/*
Package monitoring provides Prometheus metrics for sessionsync.

# Features

- API request metrics (latency, status)
- Remote session store call metrics (per operation and outcome)
- Circuit breaker state
- Session lifecycle metrics (loads, materialized files, eviction failures)
- Sync metrics (change events dispatched per kind and outcome)
- WebSocket connection metrics

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "fetch_session")
	// ... perform call ...
	timer.Stop("success")
*/
package monitoring
