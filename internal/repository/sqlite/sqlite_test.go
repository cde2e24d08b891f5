package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/elizaveta-sm/pin-it-up/internal/apperror"
	"github.com/elizaveta-sm/pin-it-up/internal/repository"
)

// newTestDB returns a DB backed by an in-memory SQLite database.
// The database is destroyed when the connection closes at test end.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCredentialCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	cred := &repository.Credential{
		UserID:       "user-1",
		Email:        "eliza@example.com",
		PasswordHash: "$2a$12$fakehash",
	}
	if err := db.Create(ctx, cred); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if cred.CreatedAt.IsZero() {
		t.Error("Create() did not set CreatedAt")
	}

	got, err := db.GetByEmail(ctx, "eliza@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.UserID != "user-1" || got.PasswordHash != cred.PasswordHash {
		t.Errorf("GetByEmail() = %+v, want user-1 with stored hash", got)
	}

	got, err = db.GetByUserID(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetByUserID() error = %v", err)
	}
	if got.Email != "eliza@example.com" {
		t.Errorf("GetByUserID().Email = %q", got.Email)
	}
}

func TestCredentialDuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := &repository.Credential{UserID: "user-1", Email: "same@example.com", PasswordHash: "h1"}
	if err := db.Create(ctx, first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	dup := &repository.Credential{UserID: "user-2", Email: "same@example.com", PasswordHash: "h2"}
	err := db.Create(ctx, dup)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create() duplicate email = %v, want ErrConflict", err)
	}
}

func TestCredentialNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByEmail(context.Background(), "ghost@example.com")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByEmail(absent) = %v, want ErrNotFound", err)
	}
}

func TestCredentialDeleteIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	cred := &repository.Credential{UserID: "user-1", Email: "e@example.com", PasswordHash: "h"}
	if err := db.Create(ctx, cred); err != nil {
		t.Fatal(err)
	}

	if err := db.Delete(ctx, "user-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := db.GetByUserID(ctx, "user-1"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByUserID after delete = %v, want ErrNotFound", err)
	}

	// second delete is a no-op, not an error
	if err := db.Delete(ctx, "user-1"); err != nil {
		t.Errorf("Delete() repeat = %v, want nil", err)
	}
}

func TestSnapshotSaveLoadClear(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.Load(ctx, "state"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Load(empty) = %v, want ErrNotFound", err)
	}

	if err := db.Save(ctx, "state", []byte(`{"pins":[]}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	// saving again overwrites, not duplicates
	if err := db.Save(ctx, "state", []byte(`{"pins":["pin-1"]}`)); err != nil {
		t.Fatalf("Save() overwrite error = %v", err)
	}

	data, err := db.Load(ctx, "state")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(data) != `{"pins":["pin-1"]}` {
		t.Errorf("Load() = %s, want latest write", data)
	}

	if err := db.Clear(ctx, "state"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := db.Load(ctx, "state"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Load after clear = %v, want ErrNotFound", err)
	}
}
