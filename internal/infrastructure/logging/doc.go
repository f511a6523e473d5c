// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Logs go to stderr by default so the CLI can keep stdout for command output.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Session loaded", zap.String("session_id", id))
//	logger.WithSession(id).Warn("Upload failed", zap.Error(err))
package logging
