package content

import "context"

// Transition tags a change event from the store's live subscription feed.
type Transition string

const (
	// TransitionAppear — a document matching the subscription was created.
	TransitionAppear Transition = "appear"
	// TransitionUpdate — an existing document changed.
	TransitionUpdate Transition = "update"
	// TransitionDisappear — a document was deleted. The event carries only
	// the id; there is no document left to include.
	TransitionDisappear Transition = "disappear"
)

// Event is one change notification. Delivery is at-least-once and ordered
// only as the channel delivers it — an appear and a disappear for the same
// id can arrive out of causal order, and consumers tolerate that through
// remove-if-present / replace-if-present idempotence plus full refetches.
type Event struct {
	Transition Transition
	// DocumentType is the subscribed type ("pin", "category", "user").
	DocumentType string
	// DocumentID identifies the changed document. For appear/update the
	// consumer re-fetches the joined document by this id rather than
	// trusting any payload snapshot.
	DocumentID string
}

// Filter scopes a subscription: by document type, optionally narrowed to a
// single document id (the way the current user's own document is watched).
type Filter struct {
	Type string
	ID   string
}

// Matches reports whether an event for (docType, id) falls inside the filter.
func (f Filter) Matches(docType, id string) bool {
	if f.Type != docType {
		return false
	}
	return f.ID == "" || f.ID == id
}

// Subscription is a live feed of change events. Events stops when the
// subscription is closed — either explicitly via Close or when the context
// passed to Listen ends. Close is safe to call more than once. Nothing is
// buffered or replayed after close.
type Subscription struct {
	Events <-chan Event

	cancel context.CancelFunc
}

// Close tears the subscription down deterministically.
func (s *Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Listener opens live subscriptions on the store's change feed.
type Listener interface {
	Listen(ctx context.Context, f Filter) (*Subscription, error)
}
