// Package config provides 12-factor configuration management for sessionsync.
//
// Configuration is loaded from environment variables with sensible defaults.
// An optional YAML or TOML file (passed with --config) is overlaid on top, so
// keys present in the file win over the environment.
//
// Configuration Sections:
//   - Server: HTTP API settings (port, host)
//   - Remote: session store and catalog URLs, timeout, retry, rate limit
//   - Workspace: root scope of the session files and the local mirror directory
//   - Sync: upload ordering policy and load fan-out limit
//   - Logging: Log level and output format
//   - RateLimit: Per-IP API rate limiting
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Syncing against %s\n", cfg.Remote.BaseURL)
//
// Environment Variables:
//   - PORT, HOST
//   - REMOTE_URL, CATALOG_URL, REMOTE_TIMEOUT_SECONDS, REMOTE_RETRY_MAX, REMOTE_RATE_LIMIT
//   - WORKSPACE_ROOT, WORKSPACE_FOLDER_NAME, WORKSPACE_MIRROR_DIR
//   - SYNC_ORDERING, SYNC_FETCH_CONCURRENCY
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
