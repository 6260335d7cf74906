package party

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/Abhiram-Kasu/CrowdCue/internal/domain"
	"github.com/Abhiram-Kasu/CrowdCue/internal/errors"
	"github.com/Abhiram-Kasu/CrowdCue/internal/metrics"
	"github.com/Abhiram-Kasu/CrowdCue/internal/retry"
)

const (
	appendMaxAttempts    = 3
	appendInitialBackoff = 100 * time.Millisecond
)

// Engine is the event publisher: it authorizes mutations, appends them to
// the party's log (the durability point), and drives the state cache.
// Ordering and mutual exclusion are per party; publishes to different
// parties proceed in parallel.
type Engine struct {
	log     domain.EventLog
	parties domain.PartyRepository
	cache   *StateCache
	clock   clockwork.Clock

	rebuilds singleflight.Group

	mu         sync.Mutex
	partyLocks map[uuid.UUID]*sync.Mutex
}

func NewEngine(log domain.EventLog, parties domain.PartyRepository, cache *StateCache, clock clockwork.Clock) *Engine {
	return &Engine{
		log:        log,
		parties:    parties,
		cache:      cache,
		clock:      clock,
		partyLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// ResolveParty maps a join code to its party record.
func (e *Engine) ResolveParty(ctx context.Context, code string) (*domain.Party, error) {
	party, err := e.parties.GetByCode(ctx, code)
	if err == domain.ErrPartyNotFound {
		return nil, errors.NotFoundError("party not found").WithContext("party_code", code)
	}
	if err != nil {
		return nil, errors.InternalError("failed to resolve party", err)
	}
	return party, nil
}

// Submit authorizes and publishes one mutation event on behalf of a caller.
// Denied or invalid events never reach the log or the cache.
func (e *Engine) Submit(ctx context.Context, code string, userID uuid.UUID, ev domain.Event) error {
	party, err := e.ResolveParty(ctx, code)
	if err != nil {
		metrics.EventsRejectedTotal.WithLabelValues("unknown_party").Inc()
		return err
	}

	role, err := e.roleOf(ctx, party, userID)
	if err != nil {
		return err
	}
	if err := Permit(role, ev.Kind()); err != nil {
		metrics.EventsRejectedTotal.WithLabelValues("forbidden").Inc()
		return err
	}

	return e.Publish(ctx, party, ev)
}

// Publish appends the event to the party's log and applies it to the cached
// state. The append is the commitment: a failed append surfaces as a
// retryable error and leaves the cache untouched, so log and cache never
// diverge. Subscriber delivery is decoupled and driven off the log tail.
func (e *Engine) Publish(ctx context.Context, party *domain.Party, ev domain.Event) error {
	start := e.clock.Now()

	policy := retry.Policy{
		MaxAttempts:    appendMaxAttempts,
		InitialBackoff: appendInitialBackoff,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.WarnContext(ctx, "Retrying event append",
				"party_id", party.ID.String(), "attempt", attempt, "backoff", backoff, "error", err)
		},
	}
	classify := func(error) retry.Action { return retry.Retry }

	err := retry.DoVoid(ctx, policy, classify, func() error {
		if err := e.log.EnsureTopic(ctx, party.ID); err != nil {
			return err
		}
		_, err := e.log.Append(ctx, party.ID, ev)
		return err
	})
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(ev.Kind()), "error").Inc()
		return errors.InfrastructureError("failed to append event to party log", err).
			WithContext("party_id", party.ID.String())
	}

	lock := e.lockFor(party.ID)
	lock.Lock()
	state, ok := e.cache.Get(party.ID)
	if !ok {
		state = emptyState(party)
	}
	e.cache.Put(party.ID, Apply(state, ev))
	lock.Unlock()

	metrics.EventsPublishedTotal.WithLabelValues(string(ev.Kind()), "success").Inc()
	metrics.PublishDuration.Observe(e.clock.Since(start).Seconds())
	return nil
}

// Snapshot returns the latest known state for a party. On a cache miss the
// state is rebuilt by replaying the party's log; concurrent misses for the
// same party share a single replay.
func (e *Engine) Snapshot(ctx context.Context, party *domain.Party) (domain.PartyState, error) {
	if state, ok := e.cache.Get(party.ID); ok {
		return state, nil
	}

	v, err, _ := e.rebuilds.Do(party.ID.String(), func() (any, error) {
		return e.rebuild(ctx, party)
	})
	if err != nil {
		return domain.PartyState{}, err
	}
	return v.(domain.PartyState), nil
}

// EnsureTopic exposes topic creation for the subscribe path.
func (e *Engine) EnsureTopic(ctx context.Context, partyID uuid.UUID) error {
	if err := e.log.EnsureTopic(ctx, partyID); err != nil {
		return errors.InfrastructureError("failed to create party topic", err).
			WithContext("party_id", partyID.String())
	}
	return nil
}

func (e *Engine) rebuild(ctx context.Context, party *domain.Party) (domain.PartyState, error) {
	// A publish may have filled the cache while we waited on singleflight.
	if state, ok := e.cache.Get(party.ID); ok {
		return state, nil
	}

	entries, err := e.log.ReadAll(ctx, party.ID)
	if err != nil {
		return domain.PartyState{}, errors.InfrastructureError("failed to replay party log", err).
			WithContext("party_id", party.ID.String())
	}

	state := Replay(emptyState(party), entries)

	// Only seed the cache if no publish won the race in the meantime;
	// a published state is always at least as new as this replay.
	lock := e.lockFor(party.ID)
	lock.Lock()
	if cached, ok := e.cache.Get(party.ID); ok {
		state = cached
	} else {
		e.cache.Put(party.ID, state)
		metrics.StateRebuildsTotal.Inc()
	}
	lock.Unlock()

	return state, nil
}

func (e *Engine) roleOf(ctx context.Context, party *domain.Party, userID uuid.UUID) (domain.Role, error) {
	if party.OwnerID == userID {
		return domain.RoleOwner, nil
	}
	member, err := e.parties.IsMember(ctx, party.ID, userID)
	if err != nil {
		return domain.RoleNone, errors.InternalError("failed to check party membership", err)
	}
	if member {
		return domain.RoleMember, nil
	}
	return domain.RoleNone, nil
}

func (e *Engine) lockFor(partyID uuid.UUID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.partyLocks[partyID]
	if !ok {
		lock = &sync.Mutex{}
		e.partyLocks[partyID] = lock
	}
	return lock
}

func emptyState(party *domain.Party) domain.PartyState {
	return domain.PartyState{
		ID:        party.ID.String(),
		Title:     party.Name,
		SongQueue: []domain.Song{},
	}
}
