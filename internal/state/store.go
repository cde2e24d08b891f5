// Package state holds the server's in-memory view of the content store:
// the pin feed, the category list, the signed-in user's profile and the
// search history. The sync loop (syncer.go) keeps the feed aligned with
// the remote change feed; handlers read from here instead of refetching
// on every request.
package state

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/elizaveta-sm/pin-it-up/internal/model"
)

const maxSearchHistory = 20

// Store is the mutable state container. Every mutation takes the lock, so
// concurrent HTTP handlers and the sync loop never observe a torn update.
// Reads return copies — callers can range over results while mutations
// land.
type Store struct {
	mu sync.RWMutex

	pins          []model.Pin
	categories    []model.Category
	currentUser   *model.User
	otherUser     *model.User
	searchHistory []string
}

func NewStore() *Store {
	return &Store{}
}

// === PINS ===

// SetPins replaces the whole feed (the initial fetch).
func (s *Store) SetPins(pins []model.Pin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins = append([]model.Pin(nil), pins...)
}

// Pins returns a copy of the feed.
func (s *Store) Pins() []model.Pin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Pin(nil), s.pins...)
}

// Pin returns the cached pin with the given id, if present.
func (s *Store) Pin(id string) (*model.Pin, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.pins {
		if s.pins[i].ID == id {
			p := s.pins[i]
			return &p, true
		}
	}
	return nil, false
}

// AddPin appends a pin to the feed. If the pin is already present the
// call degrades to a merge — the change feed can deliver an appear for a
// document the feed already fetched.
func (s *Store) AddPin(pin model.Pin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pins {
		if s.pins[i].ID == pin.ID {
			s.pins[i] = mergePin(s.pins[i], pin)
			return
		}
	}
	s.pins = append(s.pins, pin)
}

// UpdatePin shallow-merges the update into the cached pin. Unknown ids
// are appended — an update for a pin that appeared while the feed wasn't
// listening is still news.
func (s *Store) UpdatePin(pin model.Pin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pins {
		if s.pins[i].ID == pin.ID {
			s.pins[i] = mergePin(s.pins[i], pin)
			return
		}
	}
	s.pins = append(s.pins, pin)
}

// RemovePin deletes the pin from the feed. Removing an id that is not
// cached is a no-op — disappear events arrive for documents the feed
// never held, and a local delete followed by the feed's disappear must
// not fail the second time.
func (s *Store) RemovePin(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pins {
		if s.pins[i].ID == id {
			s.pins = append(s.pins[:i], s.pins[i+1:]...)
			return
		}
	}
}

// mergePin overlays src onto dst field by field. Fields that are zero in
// src keep dst's value, so a partial projection from the change feed
// can't blank out data a fuller fetch already filled in.
func mergePin(dst, src model.Pin) model.Pin {
	if src.Title != "" {
		dst.Title = src.Title
	}
	if src.About != "" {
		dst.About = src.About
	}
	if src.Image.Asset.ID != "" {
		dst.Image = src.Image
	}
	if src.Categories != nil {
		dst.Categories = src.Categories
	}
	if src.PostedBy != nil {
		dst.PostedBy = src.PostedBy
	}
	if src.Comments != nil {
		dst.Comments = src.Comments
	}
	if src.SavedBy != nil {
		dst.SavedBy = src.SavedBy
	}
	if !src.CreatedAt.IsZero() {
		dst.CreatedAt = src.CreatedAt
	}
	return dst
}

// === CATEGORIES ===

func (s *Store) SetCategories(cats []model.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = append([]model.Category(nil), cats...)
}

func (s *Store) Categories() []model.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Category(nil), s.categories...)
}

// === USERS ===

func (s *Store) SetCurrentUser(u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentUser = u
}

func (s *Store) CurrentUser() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentUser
}

// SetOtherUser caches the profile being viewed (someone else's board).
func (s *Store) SetOtherUser(u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otherUser = u
}

func (s *Store) OtherUser() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.otherUser
}

// ClearSession drops everything tied to the signed-in user. The feed and
// categories stay — they are public data.
func (s *Store) ClearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentUser = nil
	s.otherUser = nil
	s.searchHistory = nil
}

// === SEARCH HISTORY ===

// AddSearchTerm records a search, most recent first, deduplicated,
// capped at maxSearchHistory.
func (s *Store) AddSearchTerm(term string) {
	if term == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]string, 0, len(s.searchHistory)+1)
	history = append(history, term)
	for _, t := range s.searchHistory {
		if t != term {
			history = append(history, t)
		}
	}
	if len(history) > maxSearchHistory {
		history = history[:maxSearchHistory]
	}
	s.searchHistory = history
}

func (s *Store) SearchHistory() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.searchHistory...)
}

// === SNAPSHOTS ===

// snapshot is the persisted shape: the signed-in user plus the cached
// feed. Sign-out and account deletion wipe the whole snapshot, so a
// restored one never outlives its session.
type snapshot struct {
	CurrentUser   *model.User      `json:"currentUser,omitempty"`
	Pins          []model.Pin      `json:"pins"`
	Categories    []model.Category `json:"categories"`
	SearchHistory []string         `json:"searchHistory"`
}

// Snapshot serializes the caches for persistence across restarts.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.Marshal(snapshot{
		CurrentUser:   s.currentUser,
		Pins:          s.pins,
		Categories:    s.categories,
		SearchHistory: s.searchHistory,
	})
	if err != nil {
		return nil, fmt.Errorf("state: encoding snapshot: %w", err)
	}
	return data, nil
}

// Restore loads a snapshot produced by Snapshot.
func (s *Store) Restore(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("state: decoding snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentUser = snap.CurrentUser
	s.pins = snap.Pins
	s.categories = snap.Categories
	s.searchHistory = snap.SearchHistory
	return nil
}
