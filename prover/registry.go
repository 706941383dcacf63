package prover

import (
	"fmt"
	"sync"

	"github.com/omron-net/omron-node/log"
)

// BuilderFunc constructs a handler for one proof-system tag. Construction
// may be expensive (loading native artifacts, instantiating WASM runtimes),
// which is why registries memoize the result.
type BuilderFunc func() (Handler, error)

var (
	buildersMu sync.RWMutex
	builders   = make(map[string]BuilderFunc)
)

// RegisterBuilder makes a proof-system handler constructor available under
// the given tag. Builders are registered at init time so that worker
// processes, which never share memory with the parent, can rebuild the same
// handlers from the tag alone.
func RegisterBuilder(tag string, builder BuilderFunc) {
	buildersMu.Lock()
	defer buildersMu.Unlock()
	if _, dup := builders[tag]; dup {
		log.Fatalf("proof system %q registered twice", tag)
	}
	builders[tag] = builder
}

// Registry memoizes at most one handler instance per proof-system tag.
// Construction is serialized so concurrent callers requesting an uncached
// tag never pay the construction cost more than once.
type Registry struct {
	mu       sync.Mutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Get returns the handler for the tag, constructing and caching it on first
// request.
func (r *Registry) Get(tag string) (Handler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handlers[tag]; ok {
		return h, nil
	}
	buildersMu.RLock()
	builder, ok := builders[tag]
	buildersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown proof system %q", tag)
	}
	h, err := builder()
	if err != nil {
		return nil, fmt.Errorf("construct handler for proof system %q: %w", tag, err)
	}
	r.handlers[tag] = h
	log.Debugw("constructed proof handler", "proofSystem", tag)
	return h, nil
}

// Clear drops every cached handler instance. Registered builders are kept.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[string]Handler)
}
