// Package memory implements the bounded, importance-indexed knowledge store
// agents accumulate working knowledge in. A Store holds tagged,
// context-annotated items with importance scores that decay over time;
// retrieval is possible by id, tag (case-insensitive substring), context
// attributes or token-overlap relevance. SharedMemory wraps a Store with
// per-agent read/write permissions and Manager is a registry of named shared
// pools.
//
// Stores are bounded: inserting past capacity first evicts the least-important
// items (5% of capacity, minimum one). Expired items are purged lazily on any
// access that touches them.
package memory
