// Package content is the client for the hosted document store.
//
// The store holds five document types — user, pin, category, comment, and
// image assets — linked only by weak references. There are no transactions
// and no cascade-on-delete: every multi-document invariant in this
// application is maintained by issuing the right sequence of queries and
// patches through the interfaces below (see internal/engine).
//
// TWO IMPLEMENTATIONS:
//   - Client (http.go)   → talks to the hosted store's query/mutation/asset
//     endpoints, with live change events over a websocket (listen.go)
//   - MemStore (memory.go) → a full in-process implementation of the same
//     interfaces. It backs the tests and lets the server run without a
//     hosted backend.
//
// The consuming layers depend on the narrow interfaces (Querier, Mutator,
// AssetStore, Listener), never on a concrete implementation.
package content

import (
	"context"
	"io"

	"github.com/elizaveta-sm/pin-it-up/internal/model"
)

// Querier is the read side of the document store. All pin-returning methods
// return the joined projection (authors, categories, comments and savers
// dereferenced) — the only read shape the application uses.
type Querier interface {
	// Pin returns the fully joined pin, or apperror.ErrNotFound.
	Pin(ctx context.Context, id string) (*model.Pin, error)
	// Pins returns all pins, newest first.
	Pins(ctx context.Context) ([]model.Pin, error)
	PinsByIDs(ctx context.Context, ids []string) ([]model.Pin, error)
	PinsByAuthor(ctx context.Context, userID string) ([]model.Pin, error)
	// Search runs the disjunctive multi-field match query built by
	// internal/search. Clauses with no patterns are omitted.
	Search(ctx context.Context, q MatchQuery) ([]model.Pin, error)

	User(ctx context.Context, id string) (*model.User, error)
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UserByUsername(ctx context.Context, username string) (*model.User, error)

	Categories(ctx context.Context) ([]model.Category, error)
	Category(ctx context.Context, id string) (*model.Category, error)
	// CategoryByName does an exact-string lookup. Callers trim first;
	// matching is intentionally not case-folded.
	CategoryByName(ctx context.Context, name string) (*model.Category, error)

	// Reverse-reference queries. The reference graph has no back-pointers,
	// so these scan the referencing side.
	UsersWithSavedPin(ctx context.Context, pinID string) ([]model.User, error)
	CategoriesWithImageRef(ctx context.Context, assetID string) ([]model.Category, error)
	PinIDsReferencingCategory(ctx context.Context, categoryID string) ([]string, error)
	CommentIDsByAuthor(ctx context.Context, userID string) ([]string, error)
	PinIDsWithComment(ctx context.Context, commentID string) ([]string, error)

	// DraftIDs lists the store's staging documents (ids under the drafts
	// path). The deletion workflow sweeps these globally.
	DraftIDs(ctx context.Context) ([]string, error)
}

// MatchQuery is the recommendation/search query shape. A nil pattern slice
// is the "no clause" sentinel: that field is left out of the disjunction
// entirely rather than matching nothing.
type MatchQuery struct {
	TitlePatterns    []string
	AboutPatterns    []string
	CategoryPatterns []string
	// ExcludeID removes the source pin from its own results.
	ExcludeID string
}

// Empty reports whether no clause would be emitted at all.
func (q MatchQuery) Empty() bool {
	return len(q.TitlePatterns) == 0 && len(q.AboutPatterns) == 0 && len(q.CategoryPatterns) == 0
}

// Mutator is the write side: whole-document create/delete plus field-level
// patches. Every call is one network round trip; there is no batching and
// no surrounding transaction.
type Mutator interface {
	// Create stores a new document, failing if the id exists.
	Create(ctx context.Context, doc any) error
	// CreateIfNotExists stores a new document and is a no-op if the id
	// already exists.
	CreateIfNotExists(ctx context.Context, doc any) error
	// Delete removes the document (or asset) with the given id.
	// Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error
	// Apply commits a patch against a single document. Field-level
	// last-write-wins; not compare-and-swap.
	Apply(ctx context.Context, p *Patch) error
}

// AssetStore uploads image binaries and returns the stored asset.
type AssetStore interface {
	UploadImage(ctx context.Context, r io.Reader, filename string) (*model.Asset, error)
}

// Store is the full client surface, composed the way the engine consumes it.
type Store interface {
	Querier
	Mutator
	AssetStore
	Listener
}
