package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/elizaveta-sm/pin-it-up/internal/apperror"
	"github.com/elizaveta-sm/pin-it-up/internal/repository"
)

// compile-time check that *DB implements repository.SnapshotRepository
var _ repository.SnapshotRepository = (*DB)(nil)

// Save upserts the snapshot blob under the given name.
func (db *DB) Save(ctx context.Context, name string, data []byte) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO snapshots (name, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		name, data, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving snapshot %q: %w", name, err)
	}
	return nil
}

// Load returns the snapshot blob, or apperror.ErrNotFound when none has
// been saved yet.
func (db *DB) Load(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := db.conn.QueryRowContext(ctx,
		`SELECT data FROM snapshots WHERE name = ?`, name,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("snapshot", name)
		}
		return nil, fmt.Errorf("sqlite: loading snapshot %q: %w", name, err)
	}
	return data, nil
}

// Clear drops the snapshot. Clearing an absent name is a no-op.
func (db *DB) Clear(ctx context.Context, name string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM snapshots WHERE name = ?`, name,
	)
	if err != nil {
		return fmt.Errorf("sqlite: clearing snapshot %q: %w", name, err)
	}
	return nil
}
