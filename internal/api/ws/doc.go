// Package ws pushes session index changes to browser clients.
//
// Every connection first receives the current snapshot, then one message per
// index change. Slow clients are disconnected rather than allowed to hold up
// the index.
//
// Message Types (Server → Client):
//   - session: the session file listing changed
//   - focus: a deep link asked the UI to show the session view
//   - pong: reply to a client ping
//   - error: the client sent something unreadable
//
// Message Types (Client → Server):
//   - ping: keep-alive ping
//   - snapshot: request the current listing again
//
// Example Usage:
//
//	hub := ws.NewHub(idx).WithLogger(logger)
//	router.GET("/stream", hub.HandleConnection)
package ws
