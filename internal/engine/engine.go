// Package engine maintains referential integrity over the content store's
// weak-reference graph.
//
// The store has no transactions and no cascades: deleting a pin, a comment
// or an account means issuing the right sequence of patches and deletes so
// that no document is left pointing at a missing one. The workflows here
// run their steps in a strict order, from the leaves of the reference
// graph inward, so that an interruption strands at most repairable
// leftovers — never a dangling reference to something already gone. There
// is no rollback: a failed step aborts the remainder and surfaces the
// error, and a retry of the whole workflow is the recovery path (every
// step tolerates its own work already being done).
package engine

import (
	"context"
	"log/slog"

	"github.com/elizaveta-sm/pin-it-up/internal/content"
)

// Identity is the slice of the identity provider the engine needs.
// Account deletion erases the identity record last, so a crash mid-way
// leaves an account that can still sign in and retry.
type Identity interface {
	Delete(ctx context.Context, userID string) error
}

// Engine runs the multi-document workflows.
type Engine struct {
	store    content.Store
	identity Identity
	logger   *slog.Logger
}

func New(store content.Store, identity Identity, logger *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		identity: identity,
		logger:   logger,
	}
}
