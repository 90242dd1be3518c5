package catalog

import (
	"strings"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/adapters/warehouse"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

// AnnotationIndex holds a database's optional catalog tables keyed for
// lookup by composite identifier.
type AnnotationIndex struct {
	terms    []warehouse.GlossaryTerm
	tags     map[string][]warehouse.TagAssignment
	sources  map[string][]string
	targets  map[string][]string
	profiles map[string]warehouse.ProfileStat
}

// NewAnnotationIndex indexes ann. A nil ann yields an index that matches nothing.
func NewAnnotationIndex(ann *warehouse.CatalogAnnotations) *AnnotationIndex {
	idx := &AnnotationIndex{
		tags:     map[string][]warehouse.TagAssignment{},
		sources:  map[string][]string{},
		targets:  map[string][]string{},
		profiles: map[string]warehouse.ProfileStat{},
	}
	if ann == nil {
		return idx
	}
	idx.terms = ann.GlossaryTerms
	for _, a := range ann.TagAssignments {
		idx.tags[a.ObjectID] = append(idx.tags[a.ObjectID], a)
	}
	for _, e := range ann.LineageEdges {
		idx.sources[e.TargetID] = appendUnique(idx.sources[e.TargetID], e.SourceID)
		idx.targets[e.SourceID] = appendUnique(idx.targets[e.SourceID], e.TargetID)
	}
	for _, p := range ann.ProfileStats {
		prev, ok := idx.profiles[p.ColumnID]
		if !ok || newer(p, prev) {
			idx.profiles[p.ColumnID] = p
		}
	}
	return idx
}

func newer(a, b warehouse.ProfileStat) bool {
	if a.ProfilingDate == nil {
		return false
	}
	return b.ProfilingDate == nil || a.ProfilingDate.After(*b.ProfilingDate)
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

// termsIn returns glossary term names that occur in text, case-insensitively.
func (idx *AnnotationIndex) termsIn(text string, into []string) []string {
	if text == "" {
		return into
	}
	lower := strings.ToLower(text)
	for _, t := range idx.terms {
		if t.Name != "" && strings.Contains(lower, strings.ToLower(t.Name)) {
			into = appendUnique(into, t.Name)
		}
	}
	return into
}

func (idx *AnnotationIndex) applyTags(objectID string, tags map[string]string) {
	for _, a := range idx.tags[objectID] {
		tags[a.TagName] = a.TagValue
	}
}

// AnnotateDatabase attaches tags and glossary terms to a database record.
func (idx *AnnotationIndex) AnnotateDatabase(db *models.Database) {
	idx.applyTags(db.DatabaseID, db.Tags)
	db.BusinessTerms = idx.termsIn(db.Comment, db.BusinessTerms)
}

// AnnotateSchema attaches tags and glossary terms to a schema record.
func (idx *AnnotationIndex) AnnotateSchema(s *models.Schema) {
	idx.applyTags(s.SchemaID, s.Tags)
	s.BusinessTerms = idx.termsIn(s.Comment, s.BusinessTerms)
}

// AnnotateTable attaches tags, glossary terms, lineage and profile data
// to a table and its columns. Column stats already collected from the
// warehouse are kept; profile rows only fill gaps.
func (idx *AnnotationIndex) AnnotateTable(t *models.Table, columns []*models.Column) {
	idx.applyTags(t.TableID, t.Tags)
	for name, value := range t.Tags {
		if IsSensitiveTag(name, value) {
			t.SensitivityLevel = models.SensitivityHigh
		}
	}
	t.BusinessTerms = idx.termsIn(t.Comment, t.BusinessTerms)
	for _, s := range idx.sources[t.TableID] {
		t.LineageSources = appendUnique(t.LineageSources, s)
	}
	for _, s := range idx.targets[t.TableID] {
		t.LineageTargets = appendUnique(t.LineageTargets, s)
	}

	var summary *models.ProfileSummary
	for _, c := range columns {
		idx.applyTags(c.ColumnID, c.Tags)
		p, ok := idx.profiles[c.ColumnID]
		if !ok {
			continue
		}
		if summary == nil {
			summary = &models.ProfileSummary{}
		}
		if summary.RowCount == nil && p.RowCount != nil {
			summary.RowCount = p.RowCount
		}
		summary.TotalColumns++
		if c.IsPII {
			summary.PIIColumns++
		}
		if p.ProfilingDate != nil && (summary.ProfilingDate == nil || p.ProfilingDate.After(*summary.ProfilingDate)) {
			summary.ProfilingDate = p.ProfilingDate
		}
		if c.Stats == nil {
			c.Stats = &models.ColumnStats{
				NullCount:     p.NullCount,
				DistinctCount: p.DistinctCount,
				MinValue:      p.MinValue,
				MaxValue:      p.MaxValue,
				ProfiledAt:    p.ProfilingDate,
			}
		}
	}
	if summary != nil {
		t.Profile = summary
	}
}
