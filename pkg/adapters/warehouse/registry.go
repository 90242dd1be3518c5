package warehouse

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// SourceTypeInfo describes a registered source for API discovery.
type SourceTypeInfo struct {
	Type        string `json:"type"`         // "snowflake", "sqlserver", "glue"
	DisplayName string `json:"display_name"` // "Snowflake", "Microsoft SQL Server"
	Description string `json:"description"`
}

// SourceFactoryFunc opens a MetadataSource from a loosely typed config map.
type SourceFactoryFunc func(ctx context.Context, config map[string]any, logger *zap.Logger) (MetadataSource, error)

// SourceRegistration contains info + factory for one source type.
type SourceRegistration struct {
	Info    SourceTypeInfo
	Factory SourceFactoryFunc
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]SourceRegistration)
)

// Register is called by each source package's init() function.
func Register(reg SourceRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredTypes returns info for all registered sources, sorted by type.
func RegisteredTypes() []SourceTypeInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]SourceTypeInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// GetFactory returns the factory for a source type, or nil if not registered.
func GetFactory(sourceType string) SourceFactoryFunc {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[sourceType]; ok {
		return reg.Factory
	}
	return nil
}

// IsRegistered checks if a source type is available.
func IsRegistered(sourceType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[sourceType]
	return ok
}
