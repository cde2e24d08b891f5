// Package repository defines the storage interfaces for everything the
// server keeps locally: sign-in credentials and the persisted state
// snapshot. The content documents themselves live in the remote store and
// never touch this layer.
package repository

import (
	"context"
	"time"
)

// Credential is a local sign-in record. UserID is the id of the user
// document in the content store; the password hash never leaves this layer.
type Credential struct {
	UserID       string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type CredentialRepository interface {
	Create(ctx context.Context, cred *Credential) error
	GetByEmail(ctx context.Context, email string) (*Credential, error)
	GetByUserID(ctx context.Context, userID string) (*Credential, error)
	Delete(ctx context.Context, userID string) error
}

// SnapshotRepository persists the client state store across restarts.
// Snapshots are opaque JSON blobs keyed by name ("state" in practice).
type SnapshotRepository interface {
	Save(ctx context.Context, name string, data []byte) error
	Load(ctx context.Context, name string) ([]byte, error)
	Clear(ctx context.Context, name string) error
}
