package kiro

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a configured provider.
type Factory func(opts Options) (*Provider, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a provider factory available under name. Registering a
// duplicate name panics; registration happens from init functions where a
// collision is a programming error.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		panic("kiro: Register factory is nil")
	}
	if _, dup := registry[name]; dup {
		panic("kiro: Register called twice for provider " + name)
	}
	registry[name] = factory
}

// Open builds a provider registered under name.
func Open(name string, opts Options) (*Provider, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (registered: %v)", name, Providers())
	}
	return factory(opts)
}

// Providers returns the registered provider names, sorted.
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("kiro", New)
}
