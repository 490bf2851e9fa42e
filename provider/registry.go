package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Backend identifies a backend implementation in configuration. It is the
// single dispatch key: a factory is selected once per Get call and no
// further type inspection happens beyond the optional-interface assertions
// (StreamingProvider, Embedder).
type Backend string

// Known backends.
const (
	BackendOpenAI Backend = "openai"
	BackendOllama Backend = "ollama"
)

var (
	registry = make(map[Backend]func() (Provider, error))
	mu       sync.RWMutex
)

// Register adds a backend factory to the registry.
// This is typically called from a backend package's init() function.
func Register(backend Backend, factory func() (Provider, error)) {
	mu.Lock()
	defer mu.Unlock()
	registry[backend] = factory
}

// Get constructs the provider registered for a backend.
// Returns an error if the backend is not registered.
func Get(backend Backend) (Provider, error) {
	mu.RLock()
	factory, ok := registry[backend]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown backend: %q (available: %v)", backend, Available())
	}

	return factory()
}

// Available returns all registered backends, sorted.
func Available() []Backend {
	mu.RLock()
	defer mu.RUnlock()

	backends := make([]Backend, 0, len(registry))
	for b := range registry {
		backends = append(backends, b)
	}
	sort.Slice(backends, func(i, j int) bool { return backends[i] < backends[j] })
	return backends
}

// IsRegistered checks if a backend is registered.
func IsRegistered(backend Backend) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := registry[backend]
	return ok
}
