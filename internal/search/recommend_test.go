package search

import (
	"context"
	"testing"

	"github.com/elizaveta-sm/pin-it-up/internal/content"
	"github.com/elizaveta-sm/pin-it-up/internal/model"
)

// stubQuerier records Search calls and serves canned results.
type stubQuerier struct {
	content.Querier

	calls   int
	lastQ   content.MatchQuery
	results []model.Pin
	err     error
}

func (s *stubQuerier) Search(_ context.Context, q content.MatchQuery) ([]model.Pin, error) {
	s.calls++
	s.lastQ = q
	return s.results, s.err
}

func TestRecommendBuildsQuery(t *testing.T) {
	stub := &stubQuerier{results: []model.Pin{{ID: "pin-2"}}}
	r := NewRecommender(stub)

	pin := &model.Pin{
		ID:    "pin-1",
		Title: "The Best Coffee Shop!!",
		About: "a cozy spot",
		Categories: []model.Category{
			{ID: "cat-1", Name: "Food"},
		},
	}

	pins, err := r.Recommend(context.Background(), pin)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(pins) != 1 || pins[0].ID != "pin-2" {
		t.Errorf("Recommend() = %+v, want [pin-2]", pins)
	}

	q := stub.lastQ
	if q.ExcludeID != "pin-1" {
		t.Errorf("ExcludeID = %q, want pin-1", q.ExcludeID)
	}
	assertPatterns(t, "title", q.TitlePatterns, []string{"best*", "coffee*", "shop*"})
	assertPatterns(t, "about", q.AboutPatterns, []string{"cozy*", "spot*"})
	assertPatterns(t, "categories", q.CategoryPatterns, []string{"food*"})
}

func TestRecommendCachesPerPin(t *testing.T) {
	stub := &stubQuerier{results: []model.Pin{{ID: "pin-2"}}}
	r := NewRecommender(stub)
	pin := &model.Pin{ID: "pin-1", Title: "mountains"}

	if _, err := r.Recommend(context.Background(), pin); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Recommend(context.Background(), pin); err != nil {
		t.Fatal(err)
	}
	if stub.calls != 1 {
		t.Errorf("store queried %d times, want 1 (second call served from cache)", stub.calls)
	}

	// a different pin is a different cache entry
	if _, err := r.Recommend(context.Background(), &model.Pin{ID: "pin-9", Title: "lakes"}); err != nil {
		t.Fatal(err)
	}
	if stub.calls != 2 {
		t.Errorf("store queried %d times, want 2", stub.calls)
	}
}

func TestRecommendCachesEmptyResults(t *testing.T) {
	stub := &stubQuerier{}
	r := NewRecommender(stub)
	pin := &model.Pin{ID: "pin-1", Title: "sunsets"}

	for i := 0; i < 2; i++ {
		if _, err := r.Recommend(context.Background(), pin); err != nil {
			t.Fatal(err)
		}
	}
	if stub.calls != 1 {
		t.Errorf("empty result not cached: store queried %d times", stub.calls)
	}
}

func TestInvalidateDropsSourceAndContainingEntries(t *testing.T) {
	stub := &stubQuerier{results: []model.Pin{{ID: "pin-2"}}}
	r := NewRecommender(stub)

	// pin-1's recommendations contain pin-2; pin-3's do not
	if _, err := r.Recommend(context.Background(), &model.Pin{ID: "pin-1", Title: "coffee"}); err != nil {
		t.Fatal(err)
	}
	stub.results = []model.Pin{{ID: "pin-4"}}
	if _, err := r.Recommend(context.Background(), &model.Pin{ID: "pin-3", Title: "tea"}); err != nil {
		t.Fatal(err)
	}

	r.Invalidate("pin-2")

	// pin-1 must refetch (its cached list contained pin-2); pin-3 must not
	if _, err := r.Recommend(context.Background(), &model.Pin{ID: "pin-1", Title: "coffee"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Recommend(context.Background(), &model.Pin{ID: "pin-3", Title: "tea"}); err != nil {
		t.Fatal(err)
	}
	if stub.calls != 3 {
		t.Errorf("store queried %d times, want 3", stub.calls)
	}
}

func TestSearchKeyword(t *testing.T) {
	stub := &stubQuerier{}
	r := NewRecommender(stub)

	if _, err := r.Search(context.Background(), "  Coffee "); err != nil {
		t.Fatal(err)
	}
	assertPatterns(t, "title", stub.lastQ.TitlePatterns, []string{"coffee*"})
	assertPatterns(t, "about", stub.lastQ.AboutPatterns, []string{"coffee*"})
	assertPatterns(t, "categories", stub.lastQ.CategoryPatterns, []string{"coffee*"})

	// blank keyword returns nothing and skips the store
	calls := stub.calls
	pins, err := r.Search(context.Background(), "   ")
	if err != nil || pins != nil {
		t.Errorf("Search(blank) = %v, %v; want nil, nil", pins, err)
	}
	if stub.calls != calls {
		t.Error("Search(blank) should not query the store")
	}
}

func assertPatterns(t *testing.T, field string, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("%s patterns = %v, want %v", field, got, want)
		return
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s patterns = %v, want %v", field, got, want)
			return
		}
	}
}
