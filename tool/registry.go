package tool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/agentfabric/internal/util"
	"github.com/hupe1980/agentfabric/logging"
)

// Info summarizes a registered tool for listings.
type Info struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Options configures a Registry or Executor instance.
type Options struct {
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Registry is a named table of tools with schema checking at registration
// time: a tool whose parameter schema is structurally malformed is rejected
// before it can ever execute. Registering the same name twice replaces the
// earlier tool. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool

	logger logging.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(optFns ...func(o *Options)) *Registry {
	opts := Options{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Registry{
		tools:  map[string]Tool{},
		logger: opts.Logger,
	}
}

// Register adds a tool after checking its parameter schema. A duplicate name
// replaces the existing registration.
func (r *Registry) Register(t Tool) error {
	if t.Name() == "" {
		return fmt.Errorf("tool name must not be empty")
	}

	if err := util.CheckSchema(t.Parameters()); err != nil {
		return fmt.Errorf("tool %q has invalid parameter schema: %w", t.Name(), err)
	}

	r.mu.Lock()
	_, replaced := r.tools[t.Name()]
	r.tools[t.Name()] = t
	r.mu.Unlock()

	r.logger.Info("tool registered", "tool", t.Name(), "replaced", replaced)

	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]

	return t, ok
}

// Deregister removes a tool by name.
func (r *Registry) Deregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[name]; !ok {
		return false
	}

	delete(r.tools, name)

	return true
}

// List returns summaries of all registered tools, sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.tools))
	for _, t := range r.tools {
		infos = append(infos, Info{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	return infos
}
