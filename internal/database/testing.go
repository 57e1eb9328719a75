package database

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestDatabaseURLEnv names the DSN integration tests connect to.
const TestDatabaseURLEnv = "POLL_BLEND_TEST_DATABASE_URL"

// SetupTestDB connects to the test database, applies the schema and empties
// every table. The test is skipped when no DSN is configured.
func SetupTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv(TestDatabaseURLEnv)
	if dsn == "" {
		t.Skipf("%s not set", TestDatabaseURLEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := Connect(ctx, dsn, 4, 0)
	if err != nil {
		t.Fatalf("failed to create test database connection: %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	if _, err := db.pool.Exec(ctx, "TRUNCATE observations, fit_runs"); err != nil {
		t.Fatalf("failed to truncate test tables: %v", err)
	}
	return db
}
