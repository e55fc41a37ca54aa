package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"carnumbers/pkg/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// StartPostgres returns a migrated pool. TEST_DATABASE_URL points it at an
// existing server; otherwise a throwaway container is started. The test is
// skipped in short mode or when no container runtime is available.
func StartPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		pgContainer, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("carnumbers"),
			postgres.WithUsername("postgres"),
			postgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
		)
		testcontainers.CleanupContainer(t, pgContainer)
		if err != nil {
			t.Skipf("postgres container unavailable: %v", err)
		}
		connString, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("postgres connection string: %v", err)
		}
	}

	var (
		pool *pgxpool.Pool
		err  error
	)
	for deadline := time.Now().Add(30 * time.Second); ; {
		pool, err = database.NewPool(ctx, database.PoolConfig{ConnString: connString, MaxConns: 32}, nil)
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("connect to test database: %v", err)
	}
	t.Cleanup(func() { database.ClosePool(pool) })

	if err := database.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return pool
}

// SeedGuild stores a guild config row with the given range.
func SeedGuild(t *testing.T, pool *pgxpool.Pool, guildID int64, leagueID *int64, minNumber, maxNumber int) {
	t.Helper()

	query := `
		INSERT INTO guild_configs (guild_id, league_id, min_number, max_number)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id) DO UPDATE
		SET league_id = EXCLUDED.league_id, min_number = EXCLUDED.min_number, max_number = EXCLUDED.max_number
	`
	if _, err := pool.Exec(context.Background(), query, guildID, leagueID, minNumber, maxNumber); err != nil {
		t.Fatalf("seed guild %d: %v", guildID, err)
	}
}

// ResetTables empties every table between tests sharing one database.
func ResetTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	if _, err := pool.Exec(context.Background(), `TRUNCATE number_reservations, guild_configs, audit_log`); err != nil {
		t.Fatalf("reset tables: %v", err)
	}
}

// StartRedis returns a client for a throwaway Redis container, skipping the
// test when no container runtime is available.
func StartRedis(t *testing.T) *redis.Client {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping redis test in short mode")
	}

	ctx := context.Background()
	ctr, err := testcontainers.Run(ctx, "redis:7-alpine",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp").WithStartupTimeout(time.Minute)),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}

	endpoint, err := ctr.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	return client
}
