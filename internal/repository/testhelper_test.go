package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/Jhoseto/factcheck-api/internal/database/migrations"
	_ "github.com/tursodatabase/go-libsql"
)

// setupTestDB creates an in-memory SQLite database for testing.
// It runs migrations and returns a database connection that will be cleaned up
// when the test completes.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// setupTestRepos creates all repositories using a test database.
func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	db := setupTestDB(t)
	return NewRepositories(db)
}

// setupTestReposWithDB returns repositories plus the raw connection for
// tests that need to inspect rows directly.
func setupTestReposWithDB(t *testing.T) (*Repositories, *sql.DB) {
	t.Helper()
	db := setupTestDB(t)
	return NewRepositories(db), db
}

// creditTestUser creates a balance record and credits it with the given points.
func creditTestUser(t *testing.T, repos *Repositories, userID string, points int) {
	t.Helper()
	ctx := context.Background()
	if _, err := repos.Billing.EnsureBalance(ctx, userID); err != nil {
		t.Fatalf("failed to ensure balance: %v", err)
	}
	if points > 0 {
		if err := repos.Billing.Credit(ctx, userID, points, "test credit", ""); err != nil {
			t.Fatalf("failed to credit test user: %v", err)
		}
	}
}
