// Package server wires the HTTP surface: account/party endpoints, the
// mutation submission endpoint, and the SSE/WebSocket subscribe endpoints.
package server
