package pgutil

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"

	"github.com/chainsafe/xchain-orchestrator/pkg/config"
)

const (
	testDatabase = "orchestrator_test"
	testUser     = "orchestrator"
	testPassword = "orchestrator"
)

// RequireDocker skips the test when no docker daemon socket answers.
func RequireDocker(t *testing.T) {
	t.Helper()
	for _, sock := range []string{
		"/var/run/docker.sock",
		filepath.Join(os.Getenv("HOME"), ".docker/run/docker.sock"),
	} {
		if _, err := os.Stat(sock); err != nil {
			continue
		}
		conn, err := (&net.Dialer{Timeout: time.Second}).Dial("unix", sock)
		if err == nil {
			_ = conn.Close()
			return
		}
	}
	t.Skip("docker daemon is not reachable; skipping postgres-backed test")
}

// SetupTestDB starts a throwaway PostgreSQL container and connects to it.
// The container and connection are removed when the test ends.
func SetupTestDB(t *testing.T) *bun.DB {
	t.Helper()
	RequireDocker(t)
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase(testDatabase),
		postgres.WithUsername(testUser),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}
	cfg := &config.DatabaseConfig{
		Driver:   "postgres",
		Host:     host,
		Port:     port.Int(),
		User:     testUser,
		Password: testPassword,
		Database: testDatabase,
		SSLMode:  "disable",
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxElapsedTime = 30 * time.Second
	db, err := backoff.RetryWithData(func() (*bun.DB, error) {
		return ConnectDB(cfg)
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func exists(t *testing.T, db *bun.DB, query string, args ...any) bool {
	t.Helper()
	var ok bool
	if err := db.NewSelect().ColumnExpr(query, args...).Scan(context.Background(), &ok); err != nil {
		t.Fatalf("existence check failed: %v", err)
	}
	return ok
}

func tableExists(t *testing.T, db *bun.DB, table string) bool {
	t.Helper()
	return exists(t, db,
		"EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = ?)", table)
}

// AssertTableExists fails the test when table is missing.
func AssertTableExists(t *testing.T, db *bun.DB, table string) {
	t.Helper()
	if !tableExists(t, db, table) {
		t.Errorf("table %s does not exist", table)
	}
}

// AssertTableNotExists fails the test when table is present.
func AssertTableNotExists(t *testing.T, db *bun.DB, table string) {
	t.Helper()
	if tableExists(t, db, table) {
		t.Errorf("table %s should not exist", table)
	}
}

// AssertIndexExists fails the test when index is missing.
func AssertIndexExists(t *testing.T, db *bun.DB, index string) {
	t.Helper()
	if !exists(t, db, "EXISTS (SELECT 1 FROM pg_indexes WHERE schemaname = 'public' AND indexname = ?)", index) {
		t.Errorf("index %s does not exist", index)
	}
}

// AssertRowCount fails the test when table does not hold want rows.
func AssertRowCount(t *testing.T, db *bun.DB, table string, want int) {
	t.Helper()
	var got int
	err := db.NewSelect().TableExpr("?", bun.Ident(table)).ColumnExpr("count(*)").Scan(context.Background(), &got)
	if err != nil {
		t.Fatalf("failed to count rows in %s: %v", table, err)
	}
	if got != want {
		t.Errorf("table %s: want %d rows, got %d", table, want, got)
	}
}
