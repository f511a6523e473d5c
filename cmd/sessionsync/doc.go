// Command sessionsync mirrors a remote planning session into a local folder
// and keeps the remote copy in step with local edits.
//
// Usage:
//
//	sessionsync serve                      # HTTP API and websocket stream
//	sessionsync load [session-id] --dir .  # mirror one session, sync until Ctrl-C
//	sessionsync open <deep-link>           # same, from a planning.domains link
//	sessionsync ls <session-id>            # list a remote session's files
//	sessionsync catalog collections|domains|problems
//
// Configuration comes from the environment (see internal/infrastructure/config)
// and optionally from a YAML or TOML file passed with --config.
package main
