package stream

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/Abhiram-Kasu/CrowdCue/internal/metrics"
)

// Registry tracks the live subscriber session per (party, user) pair. At
// most one registration exists per pair; a newer connection from the same
// user replaces (closes) the previous one.
type Registry struct {
	mu          sync.Mutex
	sessions    map[uuid.UUID]map[uuid.UUID]*Subscriber
	maxPerParty int
}

func NewRegistry(maxPerParty int) *Registry {
	return &Registry{
		sessions:    make(map[uuid.UUID]map[uuid.UUID]*Subscriber),
		maxPerParty: maxPerParty,
	}
}

// Register adds a session, replacing any prior session for the same
// (party, user) pair. Returns an error when the party is at capacity.
func (r *Registry) Register(sub *Subscriber) error {
	r.mu.Lock()

	party, ok := r.sessions[sub.PartyID()]
	if !ok {
		party = make(map[uuid.UUID]*Subscriber)
		r.sessions[sub.PartyID()] = party
	}

	previous := party[sub.UserID()]
	if previous == nil && len(party) >= r.maxPerParty {
		r.mu.Unlock()
		return fmt.Errorf("max subscribers per party (%d) reached", r.maxPerParty)
	}

	party[sub.UserID()] = sub
	sub.onClose = func() { r.unregister(sub) }
	r.updateGauges()
	r.mu.Unlock()

	if previous != nil {
		metrics.SubscribersReplacedTotal.Inc()
		slog.Debug("Replacing subscriber session",
			"party_id", sub.PartyID().String(), "user_id", sub.UserID().String())
		previous.Close()
	}
	return nil
}

// unregister removes a session if it is still the current registration for
// its pair. A stale session closing after being replaced must not evict its
// replacement.
func (r *Registry) unregister(sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	party, ok := r.sessions[sub.PartyID()]
	if !ok || party[sub.UserID()] != sub {
		return
	}
	delete(party, sub.UserID())
	if len(party) == 0 {
		delete(r.sessions, sub.PartyID())
	}
	r.updateGauges()
}

// Count reports the number of live sessions for a party.
func (r *Registry) Count(partyID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions[partyID])
}

// CloseAll terminates every session, for graceful shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	var all []*Subscriber
	for _, party := range r.sessions {
		for _, sub := range party {
			all = append(all, sub)
		}
	}
	r.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}
	slog.Info("All subscriber sessions closed", "count", len(all))
}

// updateGauges must be called with r.mu held.
func (r *Registry) updateGauges() {
	total := 0
	for _, party := range r.sessions {
		total += len(party)
	}
	metrics.ActiveSubscribers.Set(float64(total))
	metrics.ActiveParties.Set(float64(len(r.sessions)))
}
