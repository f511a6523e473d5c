// Package http provides the HTTP handlers of the sessionsync API.
//
// Endpoints:
//   - Health: /health, /stats, /metrics
//   - Session: GET /session, POST /session/load, DELETE /session, GET /session/archive
//   - Deep links: POST /open
//   - Files: GET /files, GET|PUT|DELETE /files/*name
//   - Catalog: /catalog/collections, /catalog/collections/:id/domains, /catalog/domains/:id/problems
//   - Workspace: GET /workspace
//
// Files are addressed by bare name inside the session folder. Writes through
// /files are what an editor does, so they are synced to the remote store
// while a session is active.
//
// Example Usage:
//
//	handlers := http.NewHandlers(http.Deps{Session: controller, Store: store})
//	handlers.Register(router)
package http
