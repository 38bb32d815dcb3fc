package memory

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentfabric/core"
	"github.com/hupe1980/agentfabric/logging"
)

// decayFloor is the importance threshold below which DecayAll forgets an item.
const decayFloor = 0.05

// Item is one stored fact with metadata for retrieval and importance scoring.
type Item struct {
	ID         string         `json:"id"`
	Content    any            `json:"content"`
	Source     string         `json:"source"`
	Timestamp  time.Time      `json:"timestamp"`
	ExpiresAt  time.Time      `json:"expires_at,omitzero"` // zero value means no expiration
	Importance float64        `json:"importance"`          // 0 to 1, higher is more important
	Tags       []string       `json:"tags,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Expired reports whether the item's expiration has passed.
func (it Item) Expired(now time.Time) bool {
	return !it.ExpiresAt.IsZero() && now.After(it.ExpiresAt)
}

// ScoredItem pairs an item with its combined relevance/importance score.
type ScoredItem struct {
	Item  Item
	Score float64
}

// RelevanceFunc scores an item's relevance to a query in [0, 1]. Supplying one
// (for example an embedding-based similarity) replaces the default
// token-overlap-in-tags scoring used by SearchByRelevance.
type RelevanceFunc func(query string, it Item) float64

// Options configures a Store instance.
type Options struct {
	// Capacity bounds the number of items the store holds. Defaults to 1000;
	// zero or negative values fall back to the default.
	Capacity int
	// DecayRate is the multiplier DecayAll applies to every item's importance.
	// Defaults to 0.99.
	DecayRate float64
	// RelevanceFunc overrides the default tag-overlap relevance scoring.
	RelevanceFunc RelevanceFunc
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Stats summarizes the contents of a store.
type Stats struct {
	Count         int            `json:"count"`
	Capacity      int            `json:"capacity"`
	TopTags       map[string]int `json:"top_tags"`
	Sources       map[string]int `json:"sources"`
	AvgImportance float64        `json:"avg_importance"`
}

// Store is a bounded, tag/context-indexed item store with importance decay.
// It is safe for concurrent use.
//
// Invariants:
//   - an item present in the tag or context index is present in the item map
//     and vice versa
//   - the item count never exceeds the configured capacity
//   - expired items are lazily purged on any access that touches them
type Store struct {
	opts    Options
	mu      sync.Mutex
	items   map[string]*Item
	tagIdx  map[string]map[string]struct{} // tag -> item ids
	ctxIdx  map[string]map[string]struct{} // "key:value" -> item ids
	relFunc RelevanceFunc

	logger logging.Logger
}

// New creates a Store with optional overrides.
func New(optFns ...func(o *Options)) *Store {
	opts := Options{
		Capacity:  1000,
		DecayRate: 0.99,
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 1000
	}

	relFunc := opts.RelevanceFunc
	if relFunc == nil {
		relFunc = tagOverlapRelevance
	}

	return &Store{
		opts:    opts,
		items:   map[string]*Item{},
		tagIdx:  map[string]map[string]struct{}{},
		ctxIdx:  map[string]map[string]struct{}{},
		relFunc: relFunc,
		logger:  opts.Logger,
	}
}

// StoreOptions configures a single Store call.
type StoreOptions struct {
	// Importance of the new item, clamped to [0, 1]. Defaults to 0.5.
	Importance float64
	// Tags to index the item under.
	Tags []string
	// Context attributes to index the item under.
	Context map[string]any
	// TTL after which the item expires. Zero means no expiration.
	TTL time.Duration
	// Metadata carries arbitrary annotations.
	Metadata map[string]any
}

// Store inserts a new item and returns its id. When the store is at capacity
// the least-important items (5% of capacity, minimum one) are evicted first.
func (s *Store) Store(content any, source string, optFns ...func(o *StoreOptions)) string {
	opts := StoreOptions{Importance: 0.5}

	for _, fn := range optFns {
		fn(&opts)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) >= s.opts.Capacity {
		s.evictLeastImportant()
	}

	it := &Item{
		ID:         core.NewID(),
		Content:    content,
		Source:     source,
		Timestamp:  time.Now(),
		Importance: clamp01(opts.Importance),
		Tags:       append([]string(nil), opts.Tags...),
		Context:    copyMap(opts.Context),
		Metadata:   copyMap(opts.Metadata),
	}
	if opts.TTL > 0 {
		it.ExpiresAt = it.Timestamp.Add(opts.TTL)
	}

	s.items[it.ID] = it
	s.index(it)

	s.logger.Debug("memory.store", "id", it.ID, "source", source, "tags", it.Tags)

	return it.ID
}

// Retrieve returns the item with the given id. Expired items are deleted and
// reported as absent.
func (s *Store) Retrieve(id string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.retrieveLocked(id)
}

func (s *Store) retrieveLocked(id string) (Item, bool) {
	it, ok := s.items[id]
	if !ok {
		return Item{}, false
	}

	if it.Expired(time.Now()) {
		s.forgetLocked(id)
		return Item{}, false
	}

	return *it, true
}

// SearchByTags returns items matching the query tags, sorted by importance
// descending. A query tag matches an indexed tag when it is a case-insensitive
// substring of it. With requireAll every query tag must match (intersection);
// otherwise the per-tag matches are unioned.
func (s *Store) SearchByTags(tags []string, requireAll bool) []Item {
	if len(tags) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates map[string]struct{}

	for i, tag := range tags {
		matches := map[string]struct{}{}
		for indexed, ids := range s.tagIdx {
			if strings.Contains(strings.ToLower(indexed), strings.ToLower(tag)) {
				for id := range ids {
					matches[id] = struct{}{}
				}
			}
		}

		switch {
		case i == 0:
			candidates = matches
		case requireAll:
			for id := range candidates {
				if _, ok := matches[id]; !ok {
					delete(candidates, id)
				}
			}
		default:
			for id := range matches {
				candidates[id] = struct{}{}
			}
		}

		if requireAll && len(candidates) == 0 {
			return nil
		}
	}

	return s.collectSorted(candidates)
}

// SearchByContext returns items whose context contains every supplied
// key/value pair, sorted by importance descending. An empty query returns
// nothing.
func (s *Store) SearchByContext(ctx map[string]any) []Item {
	if len(ctx) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates map[string]struct{}
	first := true

	for key, value := range ctx {
		ids, ok := s.ctxIdx[contextKey(key, value)]
		if !ok {
			return nil
		}

		if first {
			candidates = make(map[string]struct{}, len(ids))
			for id := range ids {
				candidates[id] = struct{}{}
			}
			first = false
			continue
		}

		for id := range candidates {
			if _, ok := ids[id]; !ok {
				delete(candidates, id)
			}
		}
	}

	return s.collectSorted(candidates)
}

// SearchByRelevance scores every live item against the query and returns the
// top results by combined score: 0.7*relevance + 0.3*importance. Expired items
// encountered during the scan are purged. An empty query returns nothing.
func (s *Store) SearchByRelevance(query string, limit int) []ScoredItem {
	if query == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	scored := make([]ScoredItem, 0, len(s.items))

	for id, it := range s.items {
		if it.Expired(now) {
			s.forgetLocked(id)
			continue
		}

		relevance := s.relFunc(query, *it)
		scored = append(scored, ScoredItem{
			Item:  *it,
			Score: relevance*0.7 + it.Importance*0.3,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}

	return scored
}

// UpdateOptions describes the mutations applied by Update. Nil fields are left
// unchanged.
type UpdateOptions struct {
	Content    any
	Source     *string
	Importance *float64
	Tags       []string
	Context    map[string]any
	Metadata   map[string]any
	ExpiresAt  *time.Time
}

// Update mutates an existing item. Importance is clamped to [0, 1]; tag and
// context changes reindex the item. Returns false for unknown or expired ids.
func (s *Store) Update(id string, optFns ...func(o *UpdateOptions)) bool {
	opts := UpdateOptions{}

	for _, fn := range optFns {
		fn(&opts)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.retrieveLocked(id); !ok {
		return false
	}

	it := s.items[id]

	if opts.Importance != nil {
		it.Importance = clamp01(*opts.Importance)
	}

	if opts.Tags != nil {
		s.unindexTags(it)
		it.Tags = append([]string(nil), opts.Tags...)
		s.indexTags(it)
	}

	if opts.Context != nil {
		s.unindexContext(it)
		it.Context = copyMap(opts.Context)
		s.indexContext(it)
	}

	if opts.Content != nil {
		it.Content = opts.Content
	}

	if opts.Source != nil {
		it.Source = *opts.Source
	}

	if opts.Metadata != nil {
		it.Metadata = copyMap(opts.Metadata)
	}

	if opts.ExpiresAt != nil {
		it.ExpiresAt = *opts.ExpiresAt
	}

	return true
}

// Forget removes the item and all of its index entries. The second call for
// the same id returns false.
func (s *Store) Forget(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.forgetLocked(id)
}

// DecayAll multiplies every item's importance by the decay rate and forgets
// items whose importance drops below 0.05. It returns the number of items
// forgotten.
func (s *Store) DecayAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	forgotten := 0
	for id, it := range s.items {
		it.Importance = math.Max(0, it.Importance*s.opts.DecayRate)
		if it.Importance < decayFloor {
			s.forgetLocked(id)
			forgotten++
		}
	}

	if forgotten > 0 {
		s.logger.Debug("memory.decay", "forgotten", forgotten, "remaining", len(s.items))
	}

	return forgotten
}

// Len returns the number of stored items, including not-yet-purged expired ones.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.items)
}

// Stats summarizes the store: item count, capacity, the ten most frequent
// tags, per-source counts and average importance.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	tagCounts := map[string]int{}
	sources := map[string]int{}
	total := 0.0

	for _, it := range s.items {
		for _, tag := range it.Tags {
			tagCounts[tag]++
		}
		sources[it.Source]++
		total += it.Importance
	}

	avg := 0.0
	if len(s.items) > 0 {
		avg = total / float64(len(s.items))
	}

	return Stats{
		Count:         len(s.items),
		Capacity:      s.opts.Capacity,
		TopTags:       topN(tagCounts, 10),
		Sources:       sources,
		AvgImportance: avg,
	}
}

// -------------------- internals --------------------

func (s *Store) forgetLocked(id string) bool {
	it, ok := s.items[id]
	if !ok {
		return false
	}

	s.unindexTags(it)
	s.unindexContext(it)
	delete(s.items, id)

	return true
}

// evictLeastImportant removes max(1, 5% of capacity) items, lowest importance first.
func (s *Store) evictLeastImportant() {
	if len(s.items) == 0 {
		return
	}

	victims := make([]*Item, 0, len(s.items))
	for _, it := range s.items {
		victims = append(victims, it)
	}

	sort.SliceStable(victims, func(i, j int) bool { return victims[i].Importance < victims[j].Importance })

	count := s.opts.Capacity * 5 / 100
	if count < 1 {
		count = 1
	}
	if count > len(victims) {
		count = len(victims)
	}

	for _, it := range victims[:count] {
		s.forgetLocked(it.ID)
	}

	s.logger.Debug("memory.evict", "evicted", count, "remaining", len(s.items))
}

func (s *Store) index(it *Item) {
	s.indexTags(it)
	s.indexContext(it)
}

func (s *Store) indexTags(it *Item) {
	for _, tag := range it.Tags {
		ids, ok := s.tagIdx[tag]
		if !ok {
			ids = map[string]struct{}{}
			s.tagIdx[tag] = ids
		}
		ids[it.ID] = struct{}{}
	}
}

func (s *Store) unindexTags(it *Item) {
	for _, tag := range it.Tags {
		if ids, ok := s.tagIdx[tag]; ok {
			delete(ids, it.ID)
			if len(ids) == 0 {
				delete(s.tagIdx, tag)
			}
		}
	}
}

func (s *Store) indexContext(it *Item) {
	for key, value := range it.Context {
		k := contextKey(key, value)
		ids, ok := s.ctxIdx[k]
		if !ok {
			ids = map[string]struct{}{}
			s.ctxIdx[k] = ids
		}
		ids[it.ID] = struct{}{}
	}
}

func (s *Store) unindexContext(it *Item) {
	for key, value := range it.Context {
		k := contextKey(key, value)
		if ids, ok := s.ctxIdx[k]; ok {
			delete(ids, it.ID)
			if len(ids) == 0 {
				delete(s.ctxIdx, k)
			}
		}
	}
}

// collectSorted resolves candidate ids to live items sorted by importance desc.
func (s *Store) collectSorted(ids map[string]struct{}) []Item {
	results := make([]Item, 0, len(ids))
	for id := range ids {
		if it, ok := s.retrieveLocked(id); ok {
			results = append(results, it)
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Importance > results[j].Importance })

	return results
}

// tagOverlapRelevance is the fallback relevance scoring used when no semantic
// relevance function is configured: the fraction of query terms appearing as a
// substring of any tag, capped at 1.
func tagOverlapRelevance(query string, it Item) float64 {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return 0
	}

	matches := 0
	for _, tag := range it.Tags {
		lower := strings.ToLower(tag)
		for _, term := range terms {
			if strings.Contains(lower, term) {
				matches++
			}
		}
	}

	return math.Min(1, float64(matches)/float64(len(terms)))
}

func contextKey(key string, value any) string {
	return fmt.Sprintf("%s:%v", key, value)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}

	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}

	return cp
}

func topN(counts map[string]int, n int) map[string]int {
	type kv struct {
		k string
		v int
	}

	all := make([]kv, 0, len(counts))
	for k, v := range counts {
		all = append(all, kv{k, v})
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].v > all[j].v })

	if len(all) > n {
		all = all[:n]
	}

	top := make(map[string]int, len(all))
	for _, e := range all {
		top[e.k] = e.v
	}

	return top
}
