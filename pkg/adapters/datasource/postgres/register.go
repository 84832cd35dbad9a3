package postgres

import (
	"context"

	"github.com/crosswalk-data/crosswalk-engine/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "postgres",
			DisplayName: "PostgreSQL",
			Description: "Source value stores from PostgreSQL 12+",
		},
		Factory: func(ctx context.Context, config map[string]any) (datasource.SourceExecutor, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewExecutor(ctx, cfg)
		},
	})
}
