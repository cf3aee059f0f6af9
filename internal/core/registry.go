package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]Importer)
	registryMu sync.RWMutex
)

// Register adds an importer to the registry.
// Panics if a domain with the same key is already registered.
func Register(imp Importer) {
	registryMu.Lock()
	defer registryMu.Unlock()

	key := imp.Info().Key
	if _, exists := registry[key]; exists {
		panic(fmt.Sprintf("import domain already registered: %s", key))
	}
	registry[key] = imp
}

// Get returns the importer for a domain key.
func Get(key string) (Importer, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	imp, ok := registry[key]
	return imp, ok
}

// All returns every registered importer sorted by key.
func All() []Importer {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Importer, 0, len(registry))
	for _, imp := range registry {
		result = append(result, imp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Info().Key < result[j].Info().Key
	})
	return result
}

// Keys returns the registered domain keys, sorted.
func Keys() []string {
	all := All()
	keys := make([]string, len(all))
	for i, imp := range all {
		keys[i] = imp.Info().Key
	}
	return keys
}

// Clear removes all registered importers.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Importer)
}
