package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elizaveta-sm/pin-it-up/internal/apperror"
	"github.com/elizaveta-sm/pin-it-up/internal/repository"
)

// compile-time check that *DB implements repository.CredentialRepository
var _ repository.CredentialRepository = (*DB)(nil)

// Create inserts a sign-in record. The email UNIQUE constraint surfaces as
// apperror.ErrConflict so callers can report "already registered".
func (db *DB) Create(ctx context.Context, cred *repository.Credential) error {
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO credentials (user_id, email, password_hash, created_at)
		 VALUES (?, ?, ?, ?)`,
		cred.UserID,
		cred.Email,
		cred.PasswordHash,
		cred.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: "An account with this email already exists.",
				Field:   "email",
			}
		}
		return fmt.Errorf("sqlite: inserting credential for %s: %w", cred.UserID, err)
	}
	return nil
}

func (db *DB) GetByEmail(ctx context.Context, email string) (*repository.Credential, error) {
	return db.getCredential(ctx, `email = ?`, email)
}

func (db *DB) GetByUserID(ctx context.Context, userID string) (*repository.Credential, error) {
	return db.getCredential(ctx, `user_id = ?`, userID)
}

func (db *DB) getCredential(ctx context.Context, where string, arg string) (*repository.Credential, error) {
	var c repository.Credential
	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id, email, password_hash, created_at FROM credentials WHERE `+where,
		arg,
	).Scan(&c.UserID, &c.Email, &c.PasswordHash, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("credential", arg)
		}
		return nil, fmt.Errorf("sqlite: getting credential %s: %w", arg, err)
	}
	return &c, nil
}

// Delete removes the record. Deleting an absent user id is not an error —
// account deletion must stay idempotent across retries.
func (db *DB) Delete(ctx context.Context, userID string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM credentials WHERE user_id = ?`, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting credential %s: %w", userID, err)
	}
	return nil
}
