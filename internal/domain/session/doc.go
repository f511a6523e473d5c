// Package session implements the session synchronization engine.
//
// A Controller materializes a remote session into a vfs.Store, keeps the
// session index current and, while a session is active, pushes every local
// change under the root scope back to the remote store.
//
// Lifecycle:
//
//	Idle -> Loading -> Active -> (Loading | Idle)
//
// Loading a session:
//  1. Fetch the session's file list (failure restores the prior state)
//  2. Detach the change subscriber and evict the root scope
//  3. Register the workspace folder, once per controller
//  4. Fetch and write every file concurrently; failures are isolated
//  5. Publish {sessionID, files} to the index
//  6. Go Active and attach a change subscriber bound to the session id
//
// Local changes are dispatched fire-and-forget. With OrderingPerPath, calls
// for the same file name run one at a time in event order.
//
// Example Usage:
//
//	ctrl := session.NewController(remote, store, idx, ws, session.Config{Root: "/session"})
//	report, err := ctrl.Load(ctx, "abc123")
//	defer ctrl.Close()
package session
