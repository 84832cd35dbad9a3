package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/crosswalk-data/crosswalk-engine/pkg/apperrors"
	"github.com/crosswalk-data/crosswalk-engine/pkg/database"
	"github.com/crosswalk-data/crosswalk-engine/pkg/models"
)

// ValueStoreConfigRepository provides data access for value store configurations.
type ValueStoreConfigRepository interface {
	Upsert(ctx context.Context, config *models.ValueStoreConfig) error
	GetByName(ctx context.Context, name string) (*models.ValueStoreConfig, error)
	List(ctx context.Context) ([]*models.ValueStoreConfig, error)
	Delete(ctx context.Context, name string) error
}

type valueStoreConfigRepository struct {
	db *database.DB
}

// NewValueStoreConfigRepository creates a new ValueStoreConfigRepository.
func NewValueStoreConfigRepository(db *database.DB) ValueStoreConfigRepository {
	return &valueStoreConfigRepository{db: db}
}

var _ ValueStoreConfigRepository = (*valueStoreConfigRepository)(nil)

func (r *valueStoreConfigRepository) Upsert(ctx context.Context, config *models.ValueStoreConfig) error {
	entityTypes, err := json.Marshal(config.EntityTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal entity types: %w", err)
	}
	sourceConnection, err := json.Marshal(config.SourceConnection)
	if err != nil {
		return fmt.Errorf("failed to marshal source connection: %w", err)
	}
	matchColumns, err := json.Marshal(config.MatchColumns)
	if err != nil {
		return fmt.Errorf("failed to marshal match columns: %w", err)
	}

	now := time.Now()

	query := `
		INSERT INTO value_store_configs (
			name, description, domain, entity_types, source_connection,
			source_query, match_columns, schedule, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			domain = EXCLUDED.domain,
			entity_types = EXCLUDED.entity_types,
			source_connection = EXCLUDED.source_connection,
			source_query = EXCLUDED.source_query,
			match_columns = EXCLUDED.match_columns,
			schedule = EXCLUDED.schedule,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		config.Name,
		config.Description,
		config.Domain,
		entityTypes,
		sourceConnection,
		config.SourceQuery,
		matchColumns,
		config.Schedule,
		now,
	).Scan(&config.ID, &config.CreatedAt, &config.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert value store config: %w", err)
	}

	return nil
}

func (r *valueStoreConfigRepository) GetByName(ctx context.Context, name string) (*models.ValueStoreConfig, error) {
	query := `
		SELECT id, name, description, domain, entity_types, source_connection,
		       source_query, match_columns, schedule, created_at, updated_at
		FROM value_store_configs
		WHERE name = $1`

	config, err := scanConfig(r.db.QueryRow(ctx, query, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("value store %q: %w", name, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get value store config: %w", err)
	}

	return config, nil
}

func (r *valueStoreConfigRepository) List(ctx context.Context) ([]*models.ValueStoreConfig, error) {
	query := `
		SELECT id, name, description, domain, entity_types, source_connection,
		       source_query, match_columns, schedule, created_at, updated_at
		FROM value_store_configs
		ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list value store configs: %w", err)
	}
	defer rows.Close()

	var configs []*models.ValueStoreConfig
	for rows.Next() {
		config, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan value store config: %w", err)
		}
		configs = append(configs, config)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating value store configs: %w", err)
	}

	return configs, nil
}

func (r *valueStoreConfigRepository) Delete(ctx context.Context, name string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM value_store_configs WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete value store config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("value store %q: %w", name, apperrors.ErrNotFound)
	}
	return nil
}

// scanConfig reads one config row; pgx.Row and pgx.Rows share Scan.
func scanConfig(row pgx.Row) (*models.ValueStoreConfig, error) {
	var config models.ValueStoreConfig
	var entityTypes, sourceConnection, matchColumns []byte

	err := row.Scan(
		&config.ID,
		&config.Name,
		&config.Description,
		&config.Domain,
		&entityTypes,
		&sourceConnection,
		&config.SourceQuery,
		&matchColumns,
		&config.Schedule,
		&config.CreatedAt,
		&config.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(entityTypes, &config.EntityTypes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity types: %w", err)
	}
	if err := json.Unmarshal(sourceConnection, &config.SourceConnection); err != nil {
		return nil, fmt.Errorf("failed to unmarshal source connection: %w", err)
	}
	if err := json.Unmarshal(matchColumns, &config.MatchColumns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match columns: %w", err)
	}

	return &config, nil
}
