package state

import (
	"context"
	"errors"
	"log/slog"

	"github.com/elizaveta-sm/pin-it-up/internal/apperror"
	"github.com/elizaveta-sm/pin-it-up/internal/content"
	"github.com/elizaveta-sm/pin-it-up/internal/model"
)

// Invalidator is the slice of the recommender the syncer needs: dropping
// cache entries when pins disappear.
type Invalidator interface {
	Invalidate(pinID string)
}

// Syncer consumes the content store's change feeds and folds each event
// into the state store. Three feeds are watched: pins, categories, and
// the signed-in user's own document.
//
// Pin events:
//
//	appear     → fetch the full joined pin, append it to the feed
//	update     → fetch the full joined pin, shallow-merge it in and
//	             invalidate its recommendations
//	disappear  → drop the pin and invalidate its recommendations
//
// Category events refetch the whole category list — it is small and a
// single event can mean a create, a rename or an orphan cleanup. User
// events refresh the signed-in profile, or end the session when the
// document is gone.
//
// Events carry only ids, so everything refetches — the feed event's
// projection is too thin to render from.
type Syncer struct {
	store       content.Store
	state       *Store
	invalidator Invalidator
	snapshots   SnapshotSaver
	logger      *slog.Logger
}

// SnapshotSaver persists the state store after the feed changes. A nil
// saver disables persistence (tests, in-memory runs).
type SnapshotSaver interface {
	Save(ctx context.Context, name string, data []byte) error
}

// SnapshotLoader reads back what a SnapshotSaver wrote.
type SnapshotLoader interface {
	Load(ctx context.Context, name string) ([]byte, error)
}

// SnapshotClearer deletes a persisted snapshot. Sign-out and account
// deletion use it so a dead session can't be restored on the next boot.
type SnapshotClearer interface {
	Clear(ctx context.Context, name string) error
}

const snapshotName = "state"

func NewSyncer(store content.Store, state *Store, inv Invalidator, snapshots SnapshotSaver, logger *slog.Logger) *Syncer {
	return &Syncer{
		store:       store,
		state:       state,
		invalidator: inv,
		snapshots:   snapshots,
		logger:      logger,
	}
}

// Prime loads the initial feed and category list. Called once before Run;
// the change feed only carries deltas.
func (s *Syncer) Prime(ctx context.Context) error {
	pins, err := s.store.Pins(ctx)
	if err != nil {
		return err
	}
	s.state.SetPins(pins)

	cats, err := s.store.Categories(ctx)
	if err != nil {
		return err
	}
	s.state.SetCategories(cats)
	return nil
}

// Start subscribes to pin, category and user mutations and spawns the
// event loop. The subscriptions are registered before Start returns, so
// no mutation that happens afterwards is missed. The returned channel
// yields the loop's exit error: nil on context cancellation, non-nil
// when a feed dies and the caller should decide whether to restart.
func (s *Syncer) Start(ctx context.Context) (<-chan error, error) {
	pins, err := s.store.Listen(ctx, content.Filter{Type: model.TypePin})
	if err != nil {
		return nil, err
	}
	cats, err := s.store.Listen(ctx, content.Filter{Type: model.TypeCategory})
	if err != nil {
		pins.Close()
		return nil, err
	}
	users, err := s.store.Listen(ctx, content.Filter{Type: model.TypeUser})
	if err != nil {
		pins.Close()
		cats.Close()
		return nil, err
	}

	done := make(chan error, 1)
	go func() {
		defer pins.Close()
		defer cats.Close()
		defer users.Close()
		s.logger.Info("state sync started")

		// A closed feed under a live context means the store dropped us.
		exit := func() error {
			if ctx.Err() != nil {
				return nil
			}
			return errors.New("state: change feed closed")
		}

		for {
			select {
			case <-ctx.Done():
				done <- nil
				return
			case ev, ok := <-pins.Events:
				if !ok {
					done <- exit()
					return
				}
				s.applyPin(ctx, ev)
			case ev, ok := <-cats.Events:
				if !ok {
					done <- exit()
					return
				}
				s.applyCategory(ctx, ev)
			case ev, ok := <-users.Events:
				if !ok {
					done <- exit()
					return
				}
				s.applyUser(ctx, ev)
			}
		}
	}()
	return done, nil
}

func (s *Syncer) applyPin(ctx context.Context, ev content.Event) {
	switch ev.Transition {
	case content.TransitionAppear:
		pin, err := s.store.Pin(ctx, ev.DocumentID)
		if err != nil {
			// Deleted between the event and the refetch. The disappear
			// event that follows will be a no-op too.
			if !errors.Is(err, apperror.ErrNotFound) {
				s.logger.Error("sync: fetching appeared pin", "pinId", ev.DocumentID, "error", err)
			}
			return
		}
		s.state.AddPin(*pin)

	case content.TransitionUpdate:
		pin, err := s.store.Pin(ctx, ev.DocumentID)
		if err != nil {
			if !errors.Is(err, apperror.ErrNotFound) {
				s.logger.Error("sync: fetching updated pin", "pinId", ev.DocumentID, "error", err)
			}
			return
		}
		s.state.UpdatePin(*pin)
		// An edit can change what the pin is about; cached
		// recommendations built from the old content are stale.
		if s.invalidator != nil {
			s.invalidator.Invalidate(ev.DocumentID)
		}

	case content.TransitionDisappear:
		s.state.RemovePin(ev.DocumentID)
		if s.invalidator != nil {
			s.invalidator.Invalidate(ev.DocumentID)
		}

	default:
		s.logger.Warn("sync: unknown transition", "transition", ev.Transition)
		return
	}

	s.persist(ctx)
}

// applyCategory refetches the full category list regardless of the
// transition. The list is a handful of documents and the event alone
// can't tell a rename from an orphan cleanup apart.
func (s *Syncer) applyCategory(ctx context.Context, ev content.Event) {
	cats, err := s.store.Categories(ctx)
	if err != nil {
		s.logger.Error("sync: refetching categories", "categoryId", ev.DocumentID, "error", err)
		return
	}
	s.state.SetCategories(cats)
	s.persist(ctx)
}

// applyUser only cares about the signed-in user's own document. Other
// profiles are fetched on demand and never cached long enough to go
// stale.
func (s *Syncer) applyUser(ctx context.Context, ev content.Event) {
	cur := s.state.CurrentUser()
	if cur == nil || cur.ID != ev.DocumentID {
		return
	}

	if ev.Transition == content.TransitionDisappear {
		s.state.ClearSession()
		s.persist(ctx)
		return
	}

	user, err := s.store.User(ctx, ev.DocumentID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// Deleted between the event and the refetch.
			s.state.ClearSession()
			s.persist(ctx)
			return
		}
		s.logger.Error("sync: refetching current user", "userId", ev.DocumentID, "error", err)
		return
	}
	s.state.SetCurrentUser(user)
	s.persist(ctx)
}

func (s *Syncer) persist(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	data, err := s.state.Snapshot()
	if err != nil {
		s.logger.Error("sync: encoding snapshot", "error", err)
		return
	}
	if err := s.snapshots.Save(ctx, snapshotName, data); err != nil {
		s.logger.Error("sync: saving snapshot", "error", err)
	}
}

// ClearSnapshot drops the persisted snapshot. Nothing to clear is fine.
func ClearSnapshot(ctx context.Context, clearer SnapshotClearer, logger *slog.Logger) {
	if clearer == nil {
		return
	}
	if err := clearer.Clear(ctx, snapshotName); err != nil {
		logger.Error("state: clearing snapshot", "error", err)
	}
}

// RestoreSnapshot loads the persisted caches, if any. A missing snapshot
// is not an error — first boot starts empty.
func RestoreSnapshot(ctx context.Context, state *Store, loader SnapshotLoader, logger *slog.Logger) {
	data, err := loader.Load(ctx, snapshotName)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			logger.Warn("state: loading snapshot", "error", err)
		}
		return
	}
	if err := state.Restore(data); err != nil {
		logger.Warn("state: restoring snapshot", "error", err)
	}
}
