package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LogEntry is one decoded event read from a party's append log, together
// with the log's own ordering ID.
type LogEntry struct {
	ID    string
	Event Event
}

// EventLog abstracts the per-party durable append log. One ordered topic per
// party, created lazily and safe for many concurrent tailing readers plus
// concurrent appenders (the log itself serializes append order).
type EventLog interface {
	// EnsureTopic idempotently creates the party's log. Concurrent
	// first-time creation must resolve to a single underlying log.
	EnsureTopic(ctx context.Context, partyID uuid.UUID) error

	// Append adds an event to the tail and returns its log ID. Once Append
	// returns the event is part of the party's permanent order.
	Append(ctx context.Context, partyID uuid.UUID, ev Event) (string, error)

	// LastID returns the current tail position without consuming anything.
	// A topic with no entries yet reports "0-0".
	LastID(ctx context.Context, partyID uuid.UUID) (string, error)

	// ReadFrom returns entries appended strictly after cursor, blocking up
	// to block for new entries. It returns the entries (possibly none) and
	// the cursor to resume from.
	ReadFrom(ctx context.Context, partyID uuid.UUID, cursor string, block time.Duration) ([]LogEntry, string, error)

	// ReadAll returns every entry of the party's log, for state rebuild.
	ReadAll(ctx context.Context, partyID uuid.UUID) ([]LogEntry, error)
}

// PartyRepository abstracts party membership persistence.
type PartyRepository interface {
	Create(ctx context.Context, code, name string, ownerID uuid.UUID) (*Party, error)
	GetByCode(ctx context.Context, code string) (*Party, error)
	AddMember(ctx context.Context, partyID, userID uuid.UUID) error
	IsMember(ctx context.Context, partyID, userID uuid.UUID) (bool, error)
	List(ctx context.Context) ([]Party, error)
}

// UserRepository abstracts user persistence.
type UserRepository interface {
	Create(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (*User, error)
}
