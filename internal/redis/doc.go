// Package redis implements the durable append-log collaborator on Redis
// Streams, plus the client plumbing (metrics and circuit breaker hooks).
package redis
