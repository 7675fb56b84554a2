package source

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Provider turns a file into a syntax Unit. Implementations are expected to
// be safe for concurrent use; the scanner parses files in parallel.
type Provider interface {
	// Name identifies the provider in configuration and logs.
	Name() string
	// Match reports whether the provider can handle the given path.
	Match(path string) bool
	// Parse loads the unit for one file. A file the provider cannot make
	// sense of returns an error; the caller records it and moves on.
	Parse(ctx context.Context, path string) (*Unit, error)
}

var (
	providersMu sync.RWMutex
	providers   = make(map[string]func() Provider)
)

// RegisterProvider makes a provider constructor available by name. Host
// processes register additional providers (real parsers) through this hook.
func RegisterProvider(name string, factory func() Provider) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = factory
}

// NewProvider constructs the named provider.
func NewProvider(name string) (Provider, error) {
	providersMu.RLock()
	factory, ok := providers[name]
	providersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown source provider: %s", name)
	}
	return factory(), nil
}

// ListProviders returns the registered provider names, sorted.
func ListProviders() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
