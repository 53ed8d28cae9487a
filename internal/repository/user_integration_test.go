//go:build integration

package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/schedly/schedly/internal/testutil"
)

// ============================================================================
// User Repository Integration Tests
// ============================================================================

func TestIntegrationUserRepository_CreateUser(t *testing.T) {
	ctx, repo := newUserTestEnv(t)

	user, err := repo.CreateUser(ctx, "Diego", "diego")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if user.ID == "" {
		t.Fatal("expected generated ID")
	}

	retrieved, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}

	if retrieved.Username != "diego" {
		t.Errorf("Username mismatch: got %q, want %q", retrieved.Username, "diego")
	}
	if retrieved.Name != "Diego" {
		t.Errorf("Name mismatch: got %q, want %q", retrieved.Name, "Diego")
	}
}

func TestIntegrationUserRepository_FindUserByUsername(t *testing.T) {
	ctx, repo := newUserTestEnv(t)

	created, err := repo.CreateUser(ctx, "Diego", "diego")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	found, err := repo.FindUserByUsername(ctx, "diego")
	if err != nil {
		t.Fatalf("FindUserByUsername failed: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID mismatch: got %q, want %q", found.ID, created.ID)
	}
}

func TestIntegrationUserRepository_NotFound(t *testing.T) {
	ctx, repo := newUserTestEnv(t)

	if _, err := repo.FindUserByUsername(ctx, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got: %v", err)
	}
	if _, err := repo.GetUserByID(ctx, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got: %v", err)
	}
}

func TestIntegrationUserRepository_DuplicateUsername(t *testing.T) {
	ctx, repo := newUserTestEnv(t)

	if _, err := repo.CreateUser(ctx, "Diego", "diego"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := repo.CreateUser(ctx, "Other", "diego"); !errors.Is(err, ErrUsernameExists) {
			t.Fatalf("Expected ErrUsernameExists, got: %v", err)
		}
	}

	n, err := repo.CountUsersByUsername(ctx, "diego")
	if err != nil {
		t.Fatalf("CountUsersByUsername failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row, got %d", n)
	}
}

func TestIntegrationUserRepository_ConcurrentCreate(t *testing.T) {
	ctx, repo := newUserTestEnv(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateUser(ctx, "Diego", "diego")
			if err != nil && !errors.Is(err, ErrUsernameExists) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	n, err := repo.CountUsersByUsername(ctx, "diego")
	if err != nil {
		t.Fatalf("CountUsersByUsername failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected exactly 1 row under concurrent inserts, got %d", n)
	}
}

func TestIntegrationUserRepository_RejectsUppercaseUsername(t *testing.T) {
	ctx, repo := newUserTestEnv(t)

	// The schema refuses handles that were not normalized.
	if _, err := repo.CreateUser(ctx, "Diego", "Diego"); err == nil {
		t.Fatal("expected check constraint violation for uppercase username")
	}
}

func newUserTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetUsersSchema(ctx, dbURL); err != nil {
		t.Fatalf("reset users schema: %v", err)
	}

	return ctx, repo
}
