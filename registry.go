package rhi

import (
	"fmt"
	"sort"
	"sync"
)

// BackendFactory creates a device. Factories are registered with Register
// and called by Context.CreateDevice.
type BackendFactory func(ctx *Context, params DeviceParams) (Device, error)

var (
	registryMu sync.RWMutex
	backends   = make(map[string]BackendFactory)
)

// Register makes a backend available under name. It is typically called
// from init() in the backend package, following the database/sql driver
// pattern:
//
//	func init() {
//	    rhi.Register("cuda", New)
//	}
//
// Register panics if factory is nil or name is already registered.
func Register(name string, factory BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("rhi: Register factory is nil")
	}
	if _, dup := backends[name]; dup {
		panic("rhi: Register called twice for " + name)
	}
	backends[name] = factory
}

// Unregister removes a backend. It is mainly useful in tests.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether a backend is registered under name.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

func lookupBackend(name string) (BackendFactory, error) {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("rhi: unknown backend %q (forgotten import?)", name)
	}
	return factory, nil
}
