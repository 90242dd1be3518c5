package warehouse

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/apperrors"
)

// SourceFactory opens metadata sources by type. Services depend on this
// interface so tests can hand out fake sources.
type SourceFactory interface {
	Open(ctx context.Context, sourceType string, config map[string]any) (MetadataSource, error)
	ListTypes() []SourceTypeInfo
}

type registryFactory struct {
	defaults map[string]map[string]any
	logger   *zap.Logger
}

// NewSourceFactory returns a factory backed by the global registry.
// defaults are merged under each request's config, per source type,
// so server-wide settings (timeouts, default region) apply unless overridden.
func NewSourceFactory(defaults map[string]map[string]any, logger *zap.Logger) SourceFactory {
	if defaults == nil {
		defaults = map[string]map[string]any{}
	}
	return &registryFactory{
		defaults: defaults,
		logger:   logger,
	}
}

func (f *registryFactory) Open(ctx context.Context, sourceType string, config map[string]any) (MetadataSource, error) {
	factory := GetFactory(sourceType)
	if factory == nil {
		return nil, fmt.Errorf("%w: %s (not compiled in)", apperrors.ErrUnsupportedType, sourceType)
	}

	merged := make(map[string]any, len(config)+len(f.defaults[sourceType]))
	for k, v := range f.defaults[sourceType] {
		merged[k] = v
	}
	for k, v := range config {
		merged[k] = v
	}
	return factory(ctx, merged, f.logger)
}

func (f *registryFactory) ListTypes() []SourceTypeInfo {
	return RegisteredTypes()
}

var _ SourceFactory = (*registryFactory)(nil)
