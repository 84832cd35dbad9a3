// Package datasource defines the adapter boundary to the upstream databases
// that supply canonical rows. The refresh pipeline is the only consumer: it
// needs connectivity checks and a single materializing SELECT per refresh.
package datasource

import "context"

// SourceExecutor runs a value store's source query against its upstream
// connection. Each implementation owns its connection and must be closed
// when done.
type SourceExecutor interface {
	// TestConnection verifies the source is reachable with valid
	// credentials.
	TestConnection(ctx context.Context) error

	// Query runs the source query and materializes the full projected
	// result. Refresh replaces a store's data wholesale, so results are
	// not paginated; the caller bounds the call with a context deadline.
	Query(ctx context.Context, sqlQuery string) (*QueryResult, error)

	// Close releases the connection.
	Close() error
}

// QueryResult is a materialized source query result.
type QueryResult struct {
	Columns []string
	Rows    []map[string]any
}

// HasColumn reports whether the result projects the named column.
func (r *QueryResult) HasColumn(name string) bool {
	for _, c := range r.Columns {
		if c == name {
			return true
		}
	}
	return false
}
