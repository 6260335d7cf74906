package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/Abhiram-Kasu/CrowdCue/internal/domain"
	"github.com/Abhiram-Kasu/CrowdCue/internal/errors"
	"github.com/Abhiram-Kasu/CrowdCue/internal/metrics"
)

// State of a subscriber session. Transitions are one-way:
// Initializing -> Streaming -> Closed, or Initializing -> Closed.
type State int32

const (
	StateInitializing State = iota
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// tailMaxFailures is how many consecutive tail-read failures a session
// tolerates before giving up and closing.
const tailMaxFailures = 5

// MessageWriter is the push transport of one subscriber connection. WriteEvent
// must be safe for use from the session goroutine only; Close must be safe to
// call from any goroutine and more than once.
type MessageWriter interface {
	WriteEvent(name string, data []byte) error
	Close() error
}

// SnapshotSource provides the consistent snapshot delivered on entry.
type SnapshotSource interface {
	EnsureTopic(ctx context.Context, partyID uuid.UUID) error
	Snapshot(ctx context.Context, party *domain.Party) (domain.PartyState, error)
}

// Config tunes subscriber session timing.
type Config struct {
	// PollInterval bounds how long one blocking tail read waits.
	PollInterval time.Duration
	// MaxLifetime hard-terminates sessions that neither disconnect nor error.
	MaxLifetime time.Duration
}

// Subscriber is one live (party, user) push session.
type Subscriber struct {
	party  *domain.Party
	userID uuid.UUID
	writer MessageWriter
	log    domain.EventLog
	source SnapshotSource
	clock  clockwork.Clock
	cfg    Config

	state     atomic.Int32
	closeOnce sync.Once
	done      chan struct{}

	// onClose is set by the registry to release the registration. Always
	// invoked exactly once, on whichever exit path fires first.
	onClose func()
}

func NewSubscriber(party *domain.Party, userID uuid.UUID, writer MessageWriter, log domain.EventLog, source SnapshotSource, clock clockwork.Clock, cfg Config) *Subscriber {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxLifetime <= 0 {
		cfg.MaxLifetime = 6 * time.Hour
	}
	return &Subscriber{
		party:  party,
		userID: userID,
		writer: writer,
		log:    log,
		source: source,
		clock:  clock,
		cfg:    cfg,
		done:   make(chan struct{}),
	}
}

// State reports the session's current lifecycle state.
func (s *Subscriber) State() State {
	return State(s.state.Load())
}

// PartyID identifies the session's party.
func (s *Subscriber) PartyID() uuid.UUID { return s.party.ID }

// UserID identifies the subscriber.
func (s *Subscriber) UserID() uuid.UUID { return s.userID }

// Run drives the session to completion. It blocks until the session closes:
// on context cancellation (client disconnect), push failure, repeated tail
// failure, replacement by a newer connection, or the lifetime cap. The
// returned error describes why streaming ended; a clean shutdown returns nil.
func (s *Subscriber) Run(ctx context.Context) error {
	defer s.Close()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.MaxLifetime)
	defer cancel()

	cursor, err := s.initialize(ctx)
	if err != nil {
		return err
	}

	s.state.Store(int32(StateStreaming))
	return s.stream(ctx, cursor)
}

// initialize ensures the topic, captures the tail cursor, and delivers the
// snapshot. The cursor is captured BEFORE the snapshot is read: anything
// appended between cursor capture and snapshot read shows up both in the
// snapshot and in the stream, which the reducer's idempotence absorbs. The
// reverse order would silently skip events.
func (s *Subscriber) initialize(ctx context.Context) (string, error) {
	if err := s.source.EnsureTopic(ctx, s.party.ID); err != nil {
		return "", err
	}

	cursor, err := s.log.LastID(ctx, s.party.ID)
	if err != nil {
		return "", errors.InfrastructureError("failed to capture tail position", err)
	}

	snapshot, err := s.source.Snapshot(ctx, s.party)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := s.writer.WriteEvent(domain.InitialStateEvent, data); err != nil {
		metrics.DeliveryFailuresTotal.Inc()
		return "", fmt.Errorf("failed to deliver initial state: %w", err)
	}

	return cursor, nil
}

func (s *Subscriber) stream(ctx context.Context, cursor string) error {
	failures := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		default:
		}

		entries, next, err := s.log.ReadFrom(ctx, s.party.ID, cursor, s.cfg.PollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			if failures >= tailMaxFailures {
				return fmt.Errorf("tail read failed %d times: %w", failures, err)
			}
			slog.WarnContext(ctx, "Tail read failed, backing off",
				"party_id", s.party.ID.String(), "user_id", s.userID.String(),
				"failures", failures, "error", err)
			select {
			case <-s.clock.After(s.cfg.PollInterval):
			case <-ctx.Done():
				return nil
			case <-s.done:
				return nil
			}
			continue
		}
		failures = 0
		cursor = next

		for _, entry := range entries {
			if err := s.push(entry); err != nil {
				metrics.DeliveryFailuresTotal.Inc()
				return err
			}
		}
	}
}

// push delivers one log entry, tagged with its variant name.
func (s *Subscriber) push(entry domain.LogEntry) error {
	data, err := domain.EncodeEvent(s.party.ID.String(), entry.Event)
	if err != nil {
		return err
	}
	if err := s.writer.WriteEvent(string(entry.Event.Kind()), data); err != nil {
		return fmt.Errorf("failed to push %s: %w", entry.Event.Kind(), err)
	}
	metrics.EventsDeliveredTotal.WithLabelValues(string(entry.Event.Kind())).Inc()
	return nil
}

// Close transitions the session to Closed, releases the registration, and
// stops the tail loop. Idempotent and safe from any goroutine.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.done)
		_ = s.writer.Close()
		if s.onClose != nil {
			s.onClose()
		}
	})
}
