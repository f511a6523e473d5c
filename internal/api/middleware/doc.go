// Package middleware provides the gin middleware of the sessionsync API.
//
// Middleware stack includes:
//   - CORS: cross-origin access for the browser editor
//   - RateLimit: per-IP token bucket rate limiting with idle client cleanup
//   - AccessLog: one structured log line per request
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.RateLimitFromConfig(cfg.RateLimit)))
package middleware
