package services

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/apperrors"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/catalog"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/repositories"
)

// Search result limits.
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100

	// candidateFactor widens the store query so ranking sees more than the
	// first rows the store happens to return.
	candidateFactor = 5

	// maxTermQueries bounds concurrent store queries for one search.
	maxTermQueries = 4

	// relatedTermWeight scales matches on a business-term expansion.
	relatedTermWeight = 0.5
)

// Match weights. A result's score is the sum of the weights it earned.
const (
	scoreExactName   = 100
	scorePrefixName  = 60
	scoreNameContain = 40
	scoreKeyword     = 20
	scoreDescription = 10
	scoreTableBonus  = 1
)

// SearchService ranks tables and columns against free text. Business
// concepts in the text are expanded to related words, which score at a
// reduced weight.
type SearchService interface {
	Search(ctx context.Context, q models.SearchQuery) (*models.SearchResponse, error)
}

type searchService struct {
	repo   repositories.CatalogRepository
	logger *zap.Logger
}

// NewSearchService creates a SearchService.
func NewSearchService(repo repositories.CatalogRepository, logger *zap.Logger) SearchService {
	return &searchService{repo: repo, logger: logger.Named("search")}
}

func (s *searchService) Search(ctx context.Context, q models.SearchQuery) (*models.SearchResponse, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return nil, fmt.Errorf("%w: query text is required", apperrors.ErrInvalidInput)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	// A bare schema name is resolved within the requested database.
	if q.SchemaID != "" && q.DatabaseID != "" && !strings.Contains(q.SchemaID, catalog.Separator) {
		q.SchemaID = catalog.SchemaID(q.DatabaseID, q.SchemaID)
	}

	expanded := ExpandBusinessTerms(q.Text)
	terms := make([]searchTerm, 0, 1+len(expanded))
	terms = append(terms, searchTerm{text: q.Text, weight: 1})
	for _, e := range expanded {
		terms = append(terms, searchTerm{text: e, weight: relatedTermWeight})
	}

	candidates, err := s.gather(ctx, q, terms, limit*candidateFactor)
	if err != nil {
		return nil, err
	}

	results := rank(terms, candidates)
	total := len(results)
	if len(results) > limit {
		results = results[:limit]
	}

	s.logger.Debug("Search completed",
		zap.String("query", q.Text),
		zap.Strings("expanded_terms", expanded),
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(results)))

	return &models.SearchResponse{Query: q.Text, Results: results, Total: total, ExpandedTerms: expanded}, nil
}

// searchTerm is the query text or one of its business-term expansions.
type searchTerm struct {
	text   string
	weight float64
}

// gather queries the store once per term and merges the candidates by id.
func (s *searchService) gather(ctx context.Context, q models.SearchQuery, terms []searchTerm, perTerm int) ([]*models.SearchResult, error) {
	found := make([][]*models.SearchResult, len(terms))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxTermQueries)
	for i, term := range terms {
		g.Go(func() error {
			tq := q
			tq.Text = term.text
			res, err := s.repo.Search(gctx, tq, perTerm)
			if err != nil {
				return err
			}
			found[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var merged []*models.SearchResult
	for _, res := range found {
		for _, c := range res {
			if seen[c.EntityID] {
				continue
			}
			seen[c.EntityID] = true
			merged = append(merged, c)
		}
	}
	return merged, nil
}

// Rank scores candidates against text and orders them best first. Ties go
// to tables, then to the lexically smaller id. Candidates that match on
// nothing are dropped.
func Rank(text string, candidates []*models.SearchResult) []*models.SearchResult {
	return rank([]searchTerm{{text: text, weight: 1}}, candidates)
}

func rank(terms []searchTerm, candidates []*models.SearchResult) []*models.SearchResult {
	ranked := make([]*models.SearchResult, 0, len(candidates))

	for _, c := range candidates {
		var (
			score   float64
			matched []string
			related []string
		)
		for _, term := range terms {
			termScore, on := scoreCandidate(strings.ToLower(strings.TrimSpace(term.text)), c)
			if len(on) == 0 {
				continue
			}
			score += termScore * term.weight
			for _, field := range on {
				if !slices.Contains(matched, field) {
					matched = append(matched, field)
				}
			}
			if term.weight < 1 {
				related = append(related, term.text)
			}
		}
		if len(matched) == 0 {
			continue
		}
		c.Score = score
		c.MatchedOn = matched
		c.RelatedTerms = related
		ranked = append(ranked, c)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].EntityID < ranked[j].EntityID
	})
	return ranked
}

func scoreCandidate(needle string, c *models.SearchResult) (float64, []string) {
	var (
		score   float64
		matched []string
	)
	name := strings.ToLower(c.Name)
	switch {
	case name == needle:
		score += scoreExactName
		matched = append(matched, "name")
	case strings.HasPrefix(name, needle):
		score += scorePrefixName
		matched = append(matched, "name")
	case strings.Contains(name, needle):
		score += scoreNameContain
		matched = append(matched, "name")
	}

	for _, k := range c.Keywords {
		if strings.Contains(strings.ToLower(k), needle) {
			score += scoreKeyword
			matched = append(matched, "keywords")
			break
		}
	}

	if strings.Contains(strings.ToLower(c.Description), needle) {
		score += scoreDescription
		matched = append(matched, "description")
	}

	if len(matched) > 0 && c.EntityType == models.EntityTable {
		score += scoreTableBonus
	}
	return score, matched
}
