package models

import "time"

// Entity types that can be enriched, tagged or searched.
const (
	EntityDatabase = "database"
	EntitySchema   = "schema"
	EntityTable    = "table"
	EntityColumn   = "column"
)

// EnrichmentColumn describes one column handed to the enrichment provider.
type EnrichmentColumn struct {
	Name        string `json:"name"`
	DataType    string `json:"type"`
	Description string `json:"description,omitempty"`
}

// EnrichmentInput is the fixed input contract of the enrichment provider.
// For databases, Columns carries the schema names with an empty type.
type EnrichmentInput struct {
	EntityType  string             `json:"entity_type"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Columns     []EnrichmentColumn `json:"columns"`
}

// EnrichmentResult is the fixed output contract of the enrichment provider.
type EnrichmentResult struct {
	Description           string            `json:"description"`
	Keywords              []string          `json:"keywords"`
	Tags                  map[string]string `json:"tags"`
	BusinessGlossaryTerms []string          `json:"business_glossary_terms"`
}

// EmptyEnrichment is the degraded result used whenever a provider fails.
func EmptyEnrichment() *EnrichmentResult {
	return &EnrichmentResult{
		Keywords:              []string{},
		Tags:                  map[string]string{},
		BusinessGlossaryTerms: []string{},
	}
}

// IsEmpty reports whether the result carries nothing to write.
func (r *EnrichmentResult) IsEmpty() bool {
	return r == nil || (r.Description == "" && len(r.Keywords) == 0 &&
		len(r.Tags) == 0 && len(r.BusinessGlossaryTerms) == 0)
}

// EnrichmentRequest triggers a synchronous enrichment batch.
// DatabaseID scopes the batch to one collected database; when empty the
// database named in Credentials is used, and when both are empty the
// whole catalog is eligible.
type EnrichmentRequest struct {
	DatabaseID  string       `json:"connection_id,omitempty"`
	Credentials *Credentials `json:"credentials,omitempty"`
	BatchSize   int          `json:"batch_size"`
	Force       bool         `json:"force,omitempty"`
}

// ScopeDatabaseID resolves which database the batch is limited to.
func (r *EnrichmentRequest) ScopeDatabaseID() string {
	if r.DatabaseID != "" {
		return r.DatabaseID
	}
	if r.Credentials != nil {
		return r.Credentials.Database
	}
	return ""
}

// Enrichment item outcomes.
const (
	EnrichmentApplied = "applied"
	EnrichmentEmpty   = "empty"
	EnrichmentFailed  = "failed"
)

// EnrichmentItemResult reports what happened to one entity.
type EnrichmentItemResult struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// EnrichmentReport summarizes one enrichment batch.
type EnrichmentReport struct {
	ProcessedCount int                    `json:"processed_count"`
	SuccessCount   int                    `json:"success_count"`
	EmptyCount     int                    `json:"empty_count"`
	ErrorCount     int                    `json:"error_count"`
	Items          []EnrichmentItemResult `json:"items"`
	StartedAt      time.Time              `json:"start_time"`
	FinishedAt     time.Time              `json:"end_time"`
}

// Add records one item outcome.
func (r *EnrichmentReport) Add(item EnrichmentItemResult) {
	r.ProcessedCount++
	switch item.Status {
	case EnrichmentApplied:
		r.SuccessCount++
	case EnrichmentEmpty:
		r.EmptyCount++
	default:
		r.ErrorCount++
	}
	r.Items = append(r.Items, item)
}
