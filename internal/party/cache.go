package party

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Abhiram-Kasu/CrowdCue/internal/domain"
)

// StateCache holds the latest reduced state per party. Entries are always
// replaced as a whole, never mutated field by field, so concurrent readers
// observe either the previous or the next state and nothing in between.
type StateCache struct {
	mu     sync.RWMutex
	states map[uuid.UUID]domain.PartyState
}

func NewStateCache() *StateCache {
	return &StateCache{states: make(map[uuid.UUID]domain.PartyState)}
}

// Get returns the cached state for a party. The second return value reports
// whether a state was present; callers that need a default empty state build
// it from the party record.
func (c *StateCache) Get(partyID uuid.UUID) (domain.PartyState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.states[partyID]
	return state, ok
}

// Put replaces the cached state for a party.
func (c *StateCache) Put(partyID uuid.UUID, state domain.PartyState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[partyID] = state
}

// Len reports the number of cached parties.
func (c *StateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.states)
}
