package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

func TestMergeEnrichment_FillsOnlyEmptyFields(t *testing.T) {
	target := &EnrichmentTarget{
		Description: "Written by the data team",
		Tags:        map[string]string{"domain": "sales"},
	}
	result := &models.EnrichmentResult{
		Description:           "Generated description",
		Keywords:              []string{"orders", "revenue"},
		Tags:                  map[string]string{"domain": "finance", "pii": "false"},
		BusinessGlossaryTerms: []string{"Order"},
	}

	changed := MergeEnrichment(target, result, false)

	assert.True(t, changed)
	assert.Equal(t, "Written by the data team", target.Description)
	assert.Equal(t, []string{"orders", "revenue"}, target.Keywords)
	assert.Equal(t, []string{"Order"}, target.BusinessTerms)
	assert.Equal(t, map[string]string{"domain": "sales", "pii": "false"}, target.Tags)
}

func TestMergeEnrichment_Force(t *testing.T) {
	target := &EnrichmentTarget{
		Description: "old",
		Keywords:    []string{"old"},
		Tags:        map[string]string{"domain": "sales"},
	}
	result := &models.EnrichmentResult{
		Description: "new",
		Keywords:    []string{"new"},
		Tags:        map[string]string{"domain": "finance"},
	}

	assert.True(t, MergeEnrichment(target, result, true))
	assert.Equal(t, "new", target.Description)
	assert.Equal(t, []string{"new"}, target.Keywords)
	assert.Equal(t, "finance", target.Tags["domain"])
}

func TestMergeEnrichment_NoChange(t *testing.T) {
	target := &EnrichmentTarget{Description: "kept", Keywords: []string{"a"}, BusinessTerms: []string{"b"}}

	assert.False(t, MergeEnrichment(target, models.EmptyEnrichment(), false))
	assert.False(t, MergeEnrichment(target, nil, true))
	assert.False(t, MergeEnrichment(target, &models.EnrichmentResult{Description: "other", Keywords: []string{"x"}}, false))
	assert.Equal(t, "kept", target.Description)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `order\_id`, escapeLike("order_id"))
	assert.Equal(t, `a\\b`, escapeLike(`a\b`))
}

func TestPrefixed(t *testing.T) {
	assert.Equal(t, "c.a, c.b, c.c", prefixed("c", "a, b,\n\tc"))
}
