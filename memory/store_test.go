package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestStore_StoreAndRetrieve(t *testing.T) {
	s := New()

	id := s.Store("the sky is blue", "observer", func(o *StoreOptions) {
		o.Importance = 0.8
		o.Tags = []string{"sky", "color"}
		o.Context = map[string]any{"topic": "weather"}
	})
	if id == "" {
		t.Fatalf("expected non-empty id")
	}

	it, ok := s.Retrieve(id)
	if !ok {
		t.Fatalf("expected item to exist")
	}
	if it.Content != "the sky is blue" || it.Source != "observer" || it.Importance != 0.8 {
		t.Fatalf("unexpected item: %#v", it)
	}

	if _, ok := s.Retrieve("does-not-exist"); ok {
		t.Fatalf("expected absent result for unknown id")
	}
}

func TestStore_ImportanceClamped(t *testing.T) {
	s := New()

	id := s.Store("x", "src", func(o *StoreOptions) { o.Importance = 1.7 })
	it, _ := s.Retrieve(id)
	if it.Importance != 1.0 {
		t.Fatalf("expected importance clamped to 1.0, got %v", it.Importance)
	}

	imp := -0.3
	if !s.Update(id, func(o *UpdateOptions) { o.Importance = &imp }) {
		t.Fatalf("update failed")
	}
	it, _ = s.Retrieve(id)
	if it.Importance != 0.0 {
		t.Fatalf("expected importance clamped to 0.0, got %v", it.Importance)
	}
}

func TestStore_ExpirationLazyPurge(t *testing.T) {
	s := New()

	id := s.Store("ephemeral", "src", func(o *StoreOptions) {
		o.TTL = time.Nanosecond
	})

	time.Sleep(5 * time.Millisecond)

	if _, ok := s.Retrieve(id); ok {
		t.Fatalf("expected expired item to be absent")
	}
	// lazy purge removed it from the item map too
	if s.Len() != 0 {
		t.Fatalf("expected expired item purged, len=%d", s.Len())
	}
}

func TestStore_CapacityNeverExceeded(t *testing.T) {
	s := New(func(o *Options) { o.Capacity = 10 })

	for i := 0; i < 50; i++ {
		s.Store(fmt.Sprintf("fact %d", i), "src", func(o *StoreOptions) {
			o.Importance = float64(i%10) / 10.0
		})
		if s.Len() > 10 {
			t.Fatalf("capacity exceeded after insert %d: len=%d", i, s.Len())
		}
	}
}

func TestStore_NonPositiveCapacityUsesDefault(t *testing.T) {
	s := New(func(o *Options) { o.Capacity = 0 })

	for i := 0; i < 5; i++ {
		s.Store(fmt.Sprintf("fact %d", i), "src")
	}
	if s.Len() != 5 {
		t.Fatalf("expected all items retained under default capacity, len=%d", s.Len())
	}
	if s.Stats().Capacity != 1000 {
		t.Fatalf("expected default capacity 1000, got %d", s.Stats().Capacity)
	}

	s = New(func(o *Options) { o.Capacity = -3 })
	s.Store("a", "src")
	s.Store("b", "src")
	if s.Len() != 2 {
		t.Fatalf("expected negative capacity to fall back to default, len=%d", s.Len())
	}
}

func TestStore_EvictsLeastImportant(t *testing.T) {
	s := New(func(o *Options) { o.Capacity = 3 })

	low := s.Store("low", "src", func(o *StoreOptions) { o.Importance = 0.1 })
	s.Store("mid", "src", func(o *StoreOptions) { o.Importance = 0.5 })
	high := s.Store("high", "src", func(o *StoreOptions) { o.Importance = 0.9 })

	// at capacity; this insert evicts max(1, 5% of 3) = 1 item, the least important
	s.Store("new", "src", func(o *StoreOptions) { o.Importance = 0.7 })

	if _, ok := s.Retrieve(low); ok {
		t.Fatalf("expected least-important item to be evicted")
	}
	if _, ok := s.Retrieve(high); !ok {
		t.Fatalf("expected most-important item to survive")
	}
}

func TestStore_SearchByTags(t *testing.T) {
	s := New()

	a := s.Store("a", "src", func(o *StoreOptions) {
		o.Tags = []string{"Research", "draft"}
		o.Importance = 0.9
	})
	b := s.Store("b", "src", func(o *StoreOptions) {
		o.Tags = []string{"research"}
		o.Importance = 0.4
	})
	c := s.Store("c", "src", func(o *StoreOptions) {
		o.Tags = []string{"draft"}
		o.Importance = 0.6
	})

	// substring, case-insensitive
	res := s.SearchByTags([]string{"SEARCH"}, false)
	if len(res) != 2 {
		t.Fatalf("expected 2 substring matches, got %d", len(res))
	}

	// union, sorted by importance desc
	res = s.SearchByTags([]string{"research", "draft"}, false)
	if len(res) != 3 {
		t.Fatalf("expected union of 3, got %d", len(res))
	}
	if res[0].ID != a || res[1].ID != c || res[2].ID != b {
		t.Fatalf("expected importance-descending order, got %v %v %v", res[0].ID, res[1].ID, res[2].ID)
	}

	// intersection
	res = s.SearchByTags([]string{"research", "draft"}, true)
	if len(res) != 1 || res[0].ID != a {
		t.Fatalf("expected only the item carrying both tags, got %#v", res)
	}

	if got := s.SearchByTags(nil, false); got != nil {
		t.Fatalf("expected nil for empty query, got %#v", got)
	}
}

func TestStore_SearchByContext(t *testing.T) {
	s := New()

	a := s.Store("a", "src", func(o *StoreOptions) {
		o.Context = map[string]any{"project": "apollo", "phase": 1}
		o.Importance = 0.7
	})
	s.Store("b", "src", func(o *StoreOptions) {
		o.Context = map[string]any{"project": "apollo", "phase": 2}
	})

	res := s.SearchByContext(map[string]any{"project": "apollo"})
	if len(res) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(res))
	}

	// all pairs must match (logical AND)
	res = s.SearchByContext(map[string]any{"project": "apollo", "phase": 1})
	if len(res) != 1 || res[0].ID != a {
		t.Fatalf("expected single AND match, got %#v", res)
	}

	res = s.SearchByContext(map[string]any{"project": "apollo", "phase": 99})
	if len(res) != 0 {
		t.Fatalf("expected no match for missing pair, got %#v", res)
	}

	if got := s.SearchByContext(nil); got != nil {
		t.Fatalf("expected nil for empty context query, got %#v", got)
	}
}

func TestStore_SearchByRelevance(t *testing.T) {
	s := New()

	relevant := s.Store("notes", "src", func(o *StoreOptions) {
		o.Tags = []string{"quantum", "physics"}
		o.Importance = 0.5
	})
	s.Store("other", "src", func(o *StoreOptions) {
		o.Tags = []string{"cooking"}
		o.Importance = 0.5
	})

	res := s.SearchByRelevance("quantum physics", 5)
	if len(res) != 2 {
		t.Fatalf("expected 2 scored items, got %d", len(res))
	}
	if res[0].Item.ID != relevant {
		t.Fatalf("expected tag-matching item first, got %v", res[0].Item.ID)
	}
	// both terms match: score = 1.0*0.7 + 0.5*0.3
	if diff := res[0].Score - 0.85; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("unexpected combined score %v", res[0].Score)
	}

	if got := s.SearchByRelevance("", 5); got != nil {
		t.Fatalf("expected nil for empty query")
	}

	// limit
	res = s.SearchByRelevance("quantum", 1)
	if len(res) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(res))
	}
}

func TestStore_CustomRelevanceFunc(t *testing.T) {
	s := New(func(o *Options) {
		o.RelevanceFunc = func(query string, it Item) float64 {
			if it.Content == query {
				return 1.0
			}
			return 0.0
		}
	})

	hit := s.Store("exact", "src")
	s.Store("miss", "src")

	res := s.SearchByRelevance("exact", 1)
	if len(res) != 1 || res[0].Item.ID != hit {
		t.Fatalf("expected custom relevance to pick exact match, got %#v", res)
	}
}

func TestStore_UpdateReindexes(t *testing.T) {
	s := New()

	id := s.Store("x", "src", func(o *StoreOptions) {
		o.Tags = []string{"old"}
		o.Context = map[string]any{"k": "v1"}
	})

	ok := s.Update(id, func(o *UpdateOptions) {
		o.Tags = []string{"new"}
		o.Context = map[string]any{"k": "v2"}
	})
	if !ok {
		t.Fatalf("update failed")
	}

	if res := s.SearchByTags([]string{"old"}, false); len(res) != 0 {
		t.Fatalf("expected old tag unindexed, got %#v", res)
	}
	if res := s.SearchByTags([]string{"new"}, false); len(res) != 1 {
		t.Fatalf("expected new tag indexed, got %#v", res)
	}
	if res := s.SearchByContext(map[string]any{"k": "v1"}); len(res) != 0 {
		t.Fatalf("expected old context unindexed")
	}
	if res := s.SearchByContext(map[string]any{"k": "v2"}); len(res) != 1 {
		t.Fatalf("expected new context indexed")
	}

	if s.Update("unknown") {
		t.Fatalf("expected update of unknown id to fail")
	}
}

func TestStore_ForgetIdempotent(t *testing.T) {
	s := New()

	id := s.Store("x", "src", func(o *StoreOptions) { o.Tags = []string{"t"} })

	if !s.Forget(id) {
		t.Fatalf("expected first forget to return true")
	}
	if s.Forget(id) {
		t.Fatalf("expected second forget to return false")
	}
	if res := s.SearchByTags([]string{"t"}, false); len(res) != 0 {
		t.Fatalf("expected index entries removed")
	}
}

func TestStore_DecayAll(t *testing.T) {
	s := New(func(o *Options) { o.DecayRate = 0.5 })

	weak := s.Store("weak", "src", func(o *StoreOptions) { o.Importance = 0.08 })
	strong := s.Store("strong", "src", func(o *StoreOptions) { o.Importance = 0.8 })

	forgotten := s.DecayAll()
	if forgotten != 1 {
		t.Fatalf("expected 1 forgotten, got %d", forgotten)
	}
	if _, ok := s.Retrieve(weak); ok {
		t.Fatalf("expected decayed-below-threshold item to be forgotten")
	}

	it, ok := s.Retrieve(strong)
	if !ok {
		t.Fatalf("expected strong item to remain")
	}
	if it.Importance < 0.05 {
		t.Fatalf("remaining item below threshold: %v", it.Importance)
	}
	if it.Importance != 0.4 {
		t.Fatalf("expected importance 0.4 after decay, got %v", it.Importance)
	}
}

func TestStore_Stats(t *testing.T) {
	s := New(func(o *Options) { o.Capacity = 100 })

	s.Store("a", "alpha", func(o *StoreOptions) {
		o.Tags = []string{"x"}
		o.Importance = 0.2
	})
	s.Store("b", "alpha", func(o *StoreOptions) {
		o.Tags = []string{"x", "y"}
		o.Importance = 0.6
	})

	st := s.Stats()
	if st.Count != 2 || st.Capacity != 100 {
		t.Fatalf("unexpected stats: %#v", st)
	}
	if st.TopTags["x"] != 2 || st.TopTags["y"] != 1 {
		t.Fatalf("unexpected top tags: %#v", st.TopTags)
	}
	if st.Sources["alpha"] != 2 {
		t.Fatalf("unexpected sources: %#v", st.Sources)
	}
	if diff := st.AvgImportance - 0.4; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("unexpected avg importance: %v", st.AvgImportance)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := New(func(o *Options) { o.Capacity = 50 })

	wg := sync.WaitGroup{}
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := s.Store(fmt.Sprintf("c%d", i), "src", func(o *StoreOptions) {
				o.Tags = []string{"concurrent"}
			})
			s.Retrieve(id)
			s.SearchByTags([]string{"concurrent"}, false)
			s.SearchByRelevance("concurrent", 3)
		}(i)
	}
	wg.Wait()

	if s.Len() == 0 {
		t.Fatalf("expected items after concurrent stores")
	}
}
