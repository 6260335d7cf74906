// Package domain defines the core domain types and interfaces.
//
// This package contains concept-oriented files (party.go, events.go,
// contracts.go) with the shared model types, the mutation event union and
// its wire codec, and the collaborator interfaces. Keeping the interfaces
// here, on the consumer side, prevents circular imports between the engine,
// the stores, and the HTTP surface.
package domain
