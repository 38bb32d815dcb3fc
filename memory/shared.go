package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/agentfabric/logging"
)

// Permissions describes an agent's access to a shared memory pool.
type Permissions struct {
	Read  bool
	Write bool
}

// SharedMemory is an access-controlled memory pool usable by multiple agents.
// Every data operation takes the calling agent's id first; a denied operation
// returns the zero/absent result and logs a warning, it never returns an
// error. Writes record the source as "agent:<id>".
type SharedMemory struct {
	name  string
	store *Store

	mu    sync.RWMutex
	perms map[string]Permissions

	logger logging.Logger
}

// NewShared creates a shared pool wrapping a fresh Store configured by optFns.
func NewShared(name string, optFns ...func(o *Options)) *SharedMemory {
	store := New(optFns...)

	return &SharedMemory{
		name:   name,
		store:  store,
		perms:  map[string]Permissions{},
		logger: store.logger,
	}
}

// Name returns the pool's name.
func (sm *SharedMemory) Name() string { return sm.name }

// Grant sets an agent's read/write permissions on the pool.
func (sm *SharedMemory) Grant(agentID string, read, write bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.perms[agentID] = Permissions{Read: read, Write: write}
}

// Revoke removes all of an agent's permissions on the pool.
func (sm *SharedMemory) Revoke(agentID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.perms, agentID)
}

// CanRead reports whether the agent may read from the pool.
func (sm *SharedMemory) CanRead(agentID string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.perms[agentID].Read
}

// CanWrite reports whether the agent may write to the pool.
func (sm *SharedMemory) CanWrite(agentID string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.perms[agentID].Write
}

// Store inserts an item on behalf of the agent. Denied writes return ("", false).
func (sm *SharedMemory) Store(agentID string, content any, optFns ...func(o *StoreOptions)) (string, bool) {
	if !sm.CanWrite(agentID) {
		sm.logger.Warn("shared memory write denied", "pool", sm.name, "agent_id", agentID)
		return "", false
	}

	return sm.store.Store(content, fmt.Sprintf("agent:%s", agentID), optFns...), true
}

// Retrieve returns an item on behalf of the agent. Denied reads return absent.
func (sm *SharedMemory) Retrieve(agentID, id string) (Item, bool) {
	if !sm.CanRead(agentID) {
		sm.logger.Warn("shared memory read denied", "pool", sm.name, "agent_id", agentID)
		return Item{}, false
	}

	return sm.store.Retrieve(id)
}

// SearchByTags searches the pool on behalf of the agent. Denied reads return nil.
func (sm *SharedMemory) SearchByTags(agentID string, tags []string, requireAll bool) []Item {
	if !sm.CanRead(agentID) {
		sm.logger.Warn("shared memory read denied", "pool", sm.name, "agent_id", agentID)
		return nil
	}

	return sm.store.SearchByTags(tags, requireAll)
}

// SearchByContext searches the pool on behalf of the agent. Denied reads return nil.
func (sm *SharedMemory) SearchByContext(agentID string, ctx map[string]any) []Item {
	if !sm.CanRead(agentID) {
		sm.logger.Warn("shared memory read denied", "pool", sm.name, "agent_id", agentID)
		return nil
	}

	return sm.store.SearchByContext(ctx)
}

// SearchByRelevance searches the pool on behalf of the agent. Denied reads return nil.
func (sm *SharedMemory) SearchByRelevance(agentID, query string, limit int) []ScoredItem {
	if !sm.CanRead(agentID) {
		sm.logger.Warn("shared memory read denied", "pool", sm.name, "agent_id", agentID)
		return nil
	}

	return sm.store.SearchByRelevance(query, limit)
}

// Forget removes an item on behalf of the agent. Denied writes return false.
func (sm *SharedMemory) Forget(agentID, id string) bool {
	if !sm.CanWrite(agentID) {
		sm.logger.Warn("shared memory write denied", "pool", sm.name, "agent_id", agentID)
		return false
	}

	return sm.store.Forget(id)
}

// Len returns the number of items in the pool.
func (sm *SharedMemory) Len() int { return sm.store.Len() }

// Manager is a registry of named shared memory pools. It is the explicitly
// constructed replacement for a process-wide singleton: create one at startup
// and pass it to the components that need shared pools.
type Manager struct {
	mu    sync.RWMutex
	pools map[string]*SharedMemory

	logger logging.Logger
}

// ManagerOptions configures a Manager instance.
type ManagerOptions struct {
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// NewManager creates an empty pool registry.
func NewManager(optFns ...func(o *ManagerOptions)) *Manager {
	opts := ManagerOptions{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Manager{
		pools:  map[string]*SharedMemory{},
		logger: opts.Logger,
	}
}

// CreateShared registers a new named pool. Creating a duplicate name fails
// with ErrPoolExists.
func (m *Manager) CreateShared(name string, optFns ...func(o *Options)) (*SharedMemory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pools[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolExists, name)
	}

	pool := NewShared(name, optFns...)
	m.pools[name] = pool

	m.logger.Info("shared memory pool created", "pool", name)

	return pool, nil
}

// Shared returns the named pool.
func (m *Manager) Shared(name string) (*SharedMemory, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pool, ok := m.pools[name]

	return pool, ok
}

// ListShared returns the sorted names of all registered pools.
func (m *Manager) ListShared() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.pools))
	for name := range m.pools {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
