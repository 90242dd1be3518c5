package snowflake

import (
	"context"

	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/adapters/warehouse"
)

func init() {
	warehouse.Register(warehouse.SourceRegistration{
		Info: warehouse.SourceTypeInfo{
			Type:        "snowflake",
			DisplayName: "Snowflake",
			Description: "Collect databases, schemas, tables and columns from a Snowflake account",
		},
		Factory: func(ctx context.Context, config map[string]any, logger *zap.Logger) (warehouse.MetadataSource, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return OpenSource(ctx, cfg, logger)
		},
	})
}
