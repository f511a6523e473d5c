// Package remote is the client of the remote session store.
//
// HTTP contract:
//
//	GET    /session/{id}         -> {"result": {"sessionId": ..., "files": [...]}}
//	GET    /session/{id}/{file}  -> file text (200 only)
//	POST   /session/{id}/{file}  <- file text (200..204)
//	PUT    /session/{id}/{file}  <- file text (200..204)
//	DELETE /session/{id}/{file}  (200..204)
//
// Failures are *Error values matching ErrRemoteUnavailable (transport) or
// ErrRemoteRejected (status) through errors.Is.
package remote
