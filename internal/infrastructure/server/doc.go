// Package server wires the sync engine and serves it over HTTP.
//
// NewEngine builds the engine alone (remote client, store, index, session
// controller, resolver) for the CLI; NewServer adds the gin router, the
// websocket hub, tracing and metrics around it.
package server
