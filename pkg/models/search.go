package models

// SearchQuery is a free-text search over collected tables and columns.
type SearchQuery struct {
	Text       string `json:"q"`
	DatabaseID string `json:"database,omitempty"`
	SchemaID   string `json:"schema,omitempty"`
	TableID    string `json:"table,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// SearchResult is one ranked match.
type SearchResult struct {
	EntityType  string   `json:"entity_type"`
	EntityID    string   `json:"entity_id"`
	TableID     string   `json:"table_id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	DataType    string   `json:"data_type,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Score       float64  `json:"score"`
	MatchedOn   []string `json:"matched_on"`
	// RelatedTerms lists the business-term expansions that matched.
	RelatedTerms []string `json:"related_terms,omitempty"`
}

// SearchResponse wraps ranked results.
type SearchResponse struct {
	Query   string          `json:"query"`
	Results []*SearchResult `json:"results"`
	Total   int             `json:"total"`
	// ExpandedTerms are the related business words searched alongside Query.
	ExpandedTerms []string `json:"expanded_terms,omitempty"`
}
