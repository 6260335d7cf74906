// Package party implements the session state synchronization core: the pure
// event reducer, the in-memory state cache, the authorization gate, and the
// engine that orders events through the per-party append log.
package party
