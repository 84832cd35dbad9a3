package models

// ResolveRequest is the bulk resolution request body. Each query is
// independent; a failing query yields empty candidates without affecting
// the rest of the batch.
type ResolveRequest struct {
	Domain        string         `json:"domain,omitempty"`
	Queries       []ResolveQuery `json:"queries"`
	MaxCandidates int            `json:"max_candidates,omitempty"`
	MinScore      float64        `json:"min_score,omitempty"`
}

// ResolveQuery asks for candidates matching a single free-text term.
type ResolveQuery struct {
	Term          string   `json:"term"`
	EntityTypes   []string `json:"entity_types"`
	ExcludeValues []string `json:"exclude_values,omitempty"`
}

// Candidate is one scored match: the full canonical row plus which search
// term produced it and how.
type Candidate struct {
	Row           map[string]any `json:"row"`
	RowID         int64          `json:"row_id"`
	MatchedTerm   string         `json:"matched_term"`
	MatchedColumn string         `json:"matched_column"`
	Score         float64        `json:"score"`
	Strategy      string         `json:"strategy"`
	// Source is the scope that produced the match ("primary", "system",
	// "team:finance", "user:bob").
	Source string `json:"source"`
}

// EntityTypeResult holds the ranked candidates for one entity type.
type EntityTypeResult struct {
	Candidates []Candidate `json:"candidates"`
}

// ResolveResult is the per-query result, keyed by entity type.
type ResolveResult struct {
	Term         string                      `json:"term"`
	ByEntityType map[string]EntityTypeResult `json:"by_entity_type"`
}

// ResolveResponse is the bulk response, one result per query in order.
type ResolveResponse struct {
	Results []ResolveResult `json:"results"`
}

// ConfirmRequest is the confirm-match request body.
type ConfirmRequest struct {
	Term       string `json:"term"`
	ValueRowID int64  `json:"value_row_id"`
	StoreName  string `json:"store_name"`
	Scope      string `json:"scope,omitempty"`
}

// ConfirmResponse acknowledges a confirmation.
type ConfirmResponse struct {
	Status string `json:"status"`
}
