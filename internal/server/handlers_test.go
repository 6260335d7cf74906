package server

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/Abhiram-Kasu/CrowdCue/internal/auth"
	"github.com/Abhiram-Kasu/CrowdCue/internal/config"
	"github.com/Abhiram-Kasu/CrowdCue/internal/domain"
	"github.com/Abhiram-Kasu/CrowdCue/internal/party"
	"github.com/Abhiram-Kasu/CrowdCue/internal/stream"
)

// fakeUsers stores users in memory.
type fakeUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[uuid.UUID]*domain.User)}
}

func (r *fakeUsers) Create(ctx context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user := &domain.User{ID: uuid.New(), Username: username}
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUsers) GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[userID]; ok {
		return user, nil
	}
	return nil, domain.ErrUserNotFound
}

// fakeParties stores parties and memberships in memory.
type fakeParties struct {
	mu      sync.Mutex
	byCode  map[string]*domain.Party
	members map[uuid.UUID]map[uuid.UUID]bool
}

func newFakeParties() *fakeParties {
	return &fakeParties{
		byCode:  make(map[string]*domain.Party),
		members: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (r *fakeParties) Create(ctx context.Context, code, name string, ownerID uuid.UUID) (*domain.Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byCode[code]; exists {
		return nil, fmt.Errorf("duplicate code %s", code)
	}
	p := &domain.Party{ID: uuid.New(), Code: code, Name: name, OwnerID: ownerID}
	r.byCode[code] = p
	return p, nil
}

func (r *fakeParties) GetByCode(ctx context.Context, code string) (*domain.Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byCode[code]; ok {
		return p, nil
	}
	return nil, domain.ErrPartyNotFound
}

func (r *fakeParties) AddMember(ctx context.Context, partyID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[partyID] == nil {
		r.members[partyID] = make(map[uuid.UUID]bool)
	}
	r.members[partyID][userID] = true
	return nil
}

func (r *fakeParties) IsMember(ctx context.Context, partyID, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[partyID][userID], nil
}

func (r *fakeParties) List(ctx context.Context) ([]domain.Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Party, 0, len(r.byCode))
	for _, p := range r.byCode {
		out = append(out, *p)
	}
	return out, nil
}

// fakeEventLog is the in-memory append log used by handler tests.
type fakeEventLog struct {
	mu        sync.Mutex
	entries   map[uuid.UUID][]domain.LogEntry
	nextSeq   int
	ensureErr error
	lastIDErr error
}

func newFakeEventLog() *fakeEventLog {
	return &fakeEventLog{entries: make(map[uuid.UUID][]domain.LogEntry)}
}

// streamSeq parses the sequence part of a "<seq>-0" entry ID so cursor
// comparisons stay numeric past nine entries.
func streamSeq(id string) int {
	n, _ := strconv.Atoi(strings.TrimSuffix(id, "-0"))
	return n
}

func (l *fakeEventLog) EnsureTopic(ctx context.Context, partyID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ensureErr
}

func (l *fakeEventLog) Append(ctx context.Context, partyID uuid.UUID, ev domain.Event) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextSeq++
	id := fmt.Sprintf("%d-0", l.nextSeq)
	l.entries[partyID] = append(l.entries[partyID], domain.LogEntry{ID: id, Event: ev})
	return id, nil
}

func (l *fakeEventLog) LastID(ctx context.Context, partyID uuid.UUID) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lastIDErr != nil {
		return "", l.lastIDErr
	}
	if entries := l.entries[partyID]; len(entries) > 0 {
		return entries[len(entries)-1].ID, nil
	}
	return "0-0", nil
}

func (l *fakeEventLog) ReadFrom(ctx context.Context, partyID uuid.UUID, cursor string, block time.Duration) ([]domain.LogEntry, string, error) {
	l.mu.Lock()
	var out []domain.LogEntry
	for _, e := range l.entries[partyID] {
		if streamSeq(e.ID) > streamSeq(cursor) {
			out = append(out, e)
			cursor = e.ID
		}
	}
	l.mu.Unlock()

	if len(out) == 0 {
		select {
		case <-time.After(block):
		case <-ctx.Done():
			return nil, cursor, ctx.Err()
		}
	}
	return out, cursor, nil
}

func (l *fakeEventLog) ReadAll(ctx context.Context, partyID uuid.UUID) ([]domain.LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.LogEntry(nil), l.entries[partyID]...), nil
}

func (l *fakeEventLog) count(partyID uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries[partyID])
}

// testHarness bundles a server with its fakes.
type testHarness struct {
	srv      *Server
	users    *fakeUsers
	parties  *fakeParties
	log      *fakeEventLog
	engine   *party.Engine
	tokens   *auth.TokenService
	registry *stream.Registry
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	cfg := &config.Config{
		AppEnv:                 "test",
		Port:                   "0",
		JWTSecret:              "0123456789abcdef0123456789abcdef",
		MaxSubscribersPerParty: 10,
		SubscriberPollInterval: 10 * time.Millisecond,
		SubscriberMaxLifetime:  time.Minute,
	}

	clock := clockwork.NewRealClock()
	users := newFakeUsers()
	parties := newFakeParties()
	log := newFakeEventLog()
	engine := party.NewEngine(log, parties, party.NewStateCache(), clock)
	tokens := auth.NewTokenService(cfg.JWTSecret, clock)
	registry := stream.NewRegistry(cfg.MaxSubscribersPerParty)

	srv := NewServer(cfg, engine, log, users, parties, tokens, registry, nil, nil, clock)

	return &testHarness{
		srv:      srv,
		users:    users,
		parties:  parties,
		log:      log,
		engine:   engine,
		tokens:   tokens,
		registry: registry,
	}
}

// seedParty creates a party with an owner and one member, returning their
// bearer tokens.
func (h *testHarness) seedParty(t *testing.T) (target *domain.Party, ownerToken, memberToken string) {
	t.Helper()

	owner, err := h.users.Create(context.Background(), "owner")
	require.NoError(t, err)
	member, err := h.users.Create(context.Background(), "member")
	require.NoError(t, err)

	target, err = h.parties.Create(context.Background(), "AB12C9", "Road Trip", owner.ID)
	require.NoError(t, err)
	require.NoError(t, h.parties.AddMember(context.Background(), target.ID, member.ID))

	ownerToken, err = h.tokens.Issue(owner.ID, owner.Username)
	require.NoError(t, err)
	memberToken, err = h.tokens.Issue(member.ID, member.Username)
	require.NoError(t, err)
	return target, ownerToken, memberToken
}

func (h *testHarness) do(method, path, token, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.srv.echo.ServeHTTP(rec, req)
	return rec
}
