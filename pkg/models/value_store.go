package models

import (
	"time"

	"github.com/google/uuid"
)

// SourceColumnLearned is the sentinel source_column for search terms created
// by the learning ledger rather than derived from a match column.
const SourceColumnLearned = "__learned__"

// ValueStoreConfig describes a named, refreshable value store: where its
// canonical rows come from and which columns become search terms.
// Stored in value_store_configs.
type ValueStoreConfig struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Domain      string    `json:"domain,omitempty"`
	// EntityTypes the store can answer for, e.g. ["Vendor", "Supplier"].
	EntityTypes []string `json:"entity_types"`
	// SourceConnection is the datasource config map ("type" plus
	// adapter-specific fields). Secret fields are encrypted at rest.
	SourceConnection map[string]any `json:"source_connection"`
	SourceQuery      string         `json:"source_query"`
	// MatchColumns are the projected columns whose values become
	// primary-scoped search terms, in order.
	MatchColumns []string `json:"match_columns"`
	// Schedule is an optional refresh interval as a Go duration ("1h").
	Schedule  string    `json:"schedule,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValueRow is one canonical record pulled from the source query. RowID is
// assigned sequentially within a refresh generation and is only stable
// inside that generation.
type ValueRow struct {
	RowID   int64          `json:"row_id"`
	Columns map[string]any `json:"columns"`
}

// SearchTerm is a matchable string derived from a value row (primary scope)
// or recorded by the learning ledger (system/team/user scope).
type SearchTerm struct {
	Term         string `json:"term"`
	RowID        int64  `json:"row_id"`
	SourceColumn string `json:"source_column"`
	Scope        Scope  `json:"-"`
}

// RefreshReport summarizes one refresh run.
type RefreshReport struct {
	StoreName          string    `json:"store_name"`
	Generation         uint64    `json:"generation"`
	RowsLoaded         int       `json:"rows_loaded"`
	SearchTermsCreated int       `json:"search_terms_created"`
	StartedAt          time.Time `json:"started_at"`
	CompletedAt        time.Time `json:"completed_at"`
}

// StoreStatus is the admin view of a store's live data.
type StoreStatus struct {
	Name         string         `json:"name"`
	Generation   uint64         `json:"generation"`
	Rows         int            `json:"rows"`
	PrimaryTerms int            `json:"primary_terms"`
	LearnedTerms int            `json:"learned_terms"`
	LastRefresh  *RefreshReport `json:"last_refresh,omitempty"`
}
