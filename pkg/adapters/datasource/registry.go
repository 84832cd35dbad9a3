package datasource

import (
	"context"
	"sync"
)

// AdapterInfo describes a registered source adapter type.
type AdapterInfo struct {
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// AdapterRegistration contains info plus the factory for a source type.
type AdapterRegistration struct {
	Info    AdapterInfo
	Factory func(ctx context.Context, config map[string]any) (SourceExecutor, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]AdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapters.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	return result
}

// GetFactory returns the executor factory for a source type, or nil if the
// type is not registered.
func GetFactory(srcType string) func(ctx context.Context, config map[string]any) (SourceExecutor, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[srcType]; ok {
		return reg.Factory
	}
	return nil
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(srcType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[srcType]
	return ok
}
