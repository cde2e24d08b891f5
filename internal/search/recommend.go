package search

import (
	"context"
	"strings"
	"sync"

	"github.com/elizaveta-sm/pin-it-up/internal/content"
	"github.com/elizaveta-sm/pin-it-up/internal/model"
)

// Recommender serves "more like this" pins. Results are cached per source
// pin so reopening a pin detail doesn't refetch; Invalidate drops the
// stale entries when pins are deleted.
type Recommender struct {
	store content.Querier

	mu    sync.Mutex
	cache map[string][]model.Pin
}

func NewRecommender(store content.Querier) *Recommender {
	return &Recommender{
		store: store,
		cache: map[string][]model.Pin{},
	}
}

// Recommend returns pins related to the given pin by title, about or
// category prefix overlap. The source pin itself is never included. An
// empty result is cached too — a pin with only stop words in its text
// legitimately has no recommendations.
func (r *Recommender) Recommend(ctx context.Context, pin *model.Pin) ([]model.Pin, error) {
	r.mu.Lock()
	if cached, ok := r.cache[pin.ID]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	names := make([]string, 0, len(pin.Categories))
	for _, c := range pin.Categories {
		names = append(names, c.Name)
	}

	q := content.MatchQuery{
		TitlePatterns:    BuildPattern(pin.Title),
		AboutPatterns:    BuildPattern(pin.About),
		CategoryPatterns: CategoryPatterns(names),
		ExcludeID:        pin.ID,
	}

	pins, err := r.store.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[pin.ID] = pins
	r.mu.Unlock()
	return pins, nil
}

// Invalidate drops the cache entry keyed by the deleted pin, plus every
// cached list that still contains it. Without the second sweep a deleted
// pin keeps appearing in its neighbours' recommendations until restart.
func (r *Recommender) Invalidate(pinID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.cache, pinID)
	for src, pins := range r.cache {
		for _, p := range pins {
			if p.ID == pinID {
				delete(r.cache, src)
				break
			}
		}
	}
}

// Search finds pins whose title, about or category name starts with the
// keyword. A blank keyword returns nothing rather than everything.
func (r *Recommender) Search(ctx context.Context, keyword string) ([]model.Pin, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, nil
	}

	pattern := []string{strings.ToLower(keyword) + "*"}
	return r.store.Search(ctx, content.MatchQuery{
		TitlePatterns:    pattern,
		AboutPatterns:    pattern,
		CategoryPatterns: pattern,
	})
}
