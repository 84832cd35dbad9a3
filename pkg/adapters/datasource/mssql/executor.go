package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/crosswalk-data/crosswalk-engine/pkg/adapters/datasource"
)

// Executor runs source queries against a SQL Server upstream.
type Executor struct {
	db *sql.DB
}

// NewExecutor connects to the configured SQL Server source.
func NewExecutor(ctx context.Context, cfg *Config) (*Executor, error) {
	db, err := sql.Open("sqlserver", buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect to sqlserver: %w", err)
	}
	return &Executor{db: db}, nil
}

// TestConnection verifies the source is reachable.
func (e *Executor) TestConnection(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlserver ping failed: %w", err)
	}
	return nil
}

// Query runs the source query and materializes all projected rows.
func (e *Executor) Query(ctx context.Context, sqlQuery string) (*datasource.QueryResult, error) {
	rows, err := e.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to execute source query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			// database/sql returns text columns as []byte; normalize to
			// string so search terms derive cleanly.
			if b, ok := values[i].([]byte); ok {
				rowMap[col] = string(b)
			} else {
				rowMap[col] = values[i]
			}
		}
		resultRows = append(resultRows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return &datasource.QueryResult{
		Columns: columns,
		Rows:    resultRows,
	}, nil
}

// Close releases the connection.
func (e *Executor) Close() error {
	return e.db.Close()
}

var _ datasource.SourceExecutor = (*Executor)(nil)
