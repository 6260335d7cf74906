// Package stream implements subscriber sessions: per-connection tasks that
// deliver a consistent snapshot and then tail the party's event log, pushing
// every event in append order over SSE or WebSocket.
package stream
