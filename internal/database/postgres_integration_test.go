package database

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Abhiram-Kasu/CrowdCue/internal/domain"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	flag.Parse()

	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to terminate postgres container: %v\n", err)
		}
	}()

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get connection string: %v\n", err)
		os.Exit(1)
	}

	testPool, err = Connect(ctx, connStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to test database: %v\n", err)
		os.Exit(1)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func setupRepos(t *testing.T) (*PartyRepo, *UserRepo) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	t.Cleanup(func() {
		_, err := testPool.Exec(context.Background(), "TRUNCATE users, parties, party_members CASCADE")
		if err != nil {
			t.Logf("failed to truncate tables: %v", err)
		}
	})

	return NewPartyRepo(testPool), NewUserRepo(testPool)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	assert.NoError(t, RunMigrations(context.Background(), testPool))
}

func TestUserRepo_CreateAndGet(t *testing.T) {
	_, users := setupRepos(t)
	ctx := context.Background()

	created, err := users.Create(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "alice", created.Username)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := users.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "alice", got.Username)
}

func TestUserRepo_GetMissing(t *testing.T) {
	_, users := setupRepos(t)

	_, err := users.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestPartyRepo_CreateAndGetByCode(t *testing.T) {
	parties, users := setupRepos(t)
	ctx := context.Background()

	owner, err := users.Create(ctx, "owner")
	require.NoError(t, err)

	created, err := parties.Create(ctx, "AB12C9", "Road Trip", owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "AB12C9", created.Code)
	assert.Equal(t, owner.ID, created.OwnerID)

	got, err := parties.GetByCode(ctx, "AB12C9")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Road Trip", got.Name)
}

func TestPartyRepo_GetByCodeMissing(t *testing.T) {
	parties, _ := setupRepos(t)

	_, err := parties.GetByCode(context.Background(), "nope99")
	assert.ErrorIs(t, err, domain.ErrPartyNotFound)
}

func TestPartyRepo_DuplicateCodeRejected(t *testing.T) {
	parties, users := setupRepos(t)
	ctx := context.Background()

	owner, err := users.Create(ctx, "owner")
	require.NoError(t, err)

	_, err = parties.Create(ctx, "AB12C9", "First", owner.ID)
	require.NoError(t, err)

	_, err = parties.Create(ctx, "AB12C9", "Second", owner.ID)
	assert.Error(t, err, "join codes are unique")
}

func TestPartyRepo_Membership(t *testing.T) {
	parties, users := setupRepos(t)
	ctx := context.Background()

	owner, err := users.Create(ctx, "owner")
	require.NoError(t, err)
	member, err := users.Create(ctx, "member")
	require.NoError(t, err)

	created, err := parties.Create(ctx, "AB12C9", "Road Trip", owner.ID)
	require.NoError(t, err)

	isMember, err := parties.IsMember(ctx, created.ID, member.ID)
	require.NoError(t, err)
	assert.False(t, isMember)

	require.NoError(t, parties.AddMember(ctx, created.ID, member.ID))
	// Joining twice is harmless.
	require.NoError(t, parties.AddMember(ctx, created.ID, member.ID))

	isMember, err = parties.IsMember(ctx, created.ID, member.ID)
	require.NoError(t, err)
	assert.True(t, isMember)
}

func TestPartyRepo_List(t *testing.T) {
	parties, users := setupRepos(t)
	ctx := context.Background()

	owner, err := users.Create(ctx, "owner")
	require.NoError(t, err)

	_, err = parties.Create(ctx, "AAAAAA", "First", owner.ID)
	require.NoError(t, err)
	_, err = parties.Create(ctx, "BBBBBB", "Second", owner.ID)
	require.NoError(t, err)

	all, err := parties.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
