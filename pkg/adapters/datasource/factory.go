package datasource

import (
	"context"
	"fmt"
)

// ExecutorFactory creates source executors from the registry.
type ExecutorFactory interface {
	// NewSourceExecutor creates an executor for the given source type.
	NewSourceExecutor(ctx context.Context, srcType string, config map[string]any) (SourceExecutor, error)

	// ListTypes returns info for all registered adapter types.
	ListTypes() []AdapterInfo
}

type registryFactory struct{}

// NewExecutorFactory returns a factory backed by the adapter registry.
func NewExecutorFactory() ExecutorFactory {
	return &registryFactory{}
}

var _ ExecutorFactory = (*registryFactory)(nil)

func (f *registryFactory) NewSourceExecutor(ctx context.Context, srcType string, config map[string]any) (SourceExecutor, error) {
	factory := GetFactory(srcType)
	if factory == nil {
		return nil, fmt.Errorf("unsupported source type: %s (not compiled in)", srcType)
	}
	return factory(ctx, config)
}

func (f *registryFactory) ListTypes() []AdapterInfo {
	return RegisteredAdapters()
}
