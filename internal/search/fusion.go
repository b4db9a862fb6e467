package search

import (
	"fmt"
	"sort"
	"strings"

	"github.com/loreseek/loreseek/internal/store"
	"github.com/loreseek/loreseek/internal/structure"
)

// Keyword boost weights. A query term matched in a level-n heading is
// worth (7-n) * headingWeightStep; matches in the flattened section and
// subsection fields are worth sectionMatchWeight each.
const (
	headingWeightStep  = 0.05
	sectionMatchWeight = 0.1
	maxHeadingLevel    = 6
)

// FusionReranker combines dense, sparse, and keyword-match signals into
// a single ranked list.
type FusionReranker struct {
	weights Weights
}

// NewFusionReranker validates the weights and returns a reranker.
func NewFusionReranker(w Weights) (*FusionReranker, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &FusionReranker{weights: w}, nil
}

// candidate is the intermediate fusion state for one unioned chunk.
type candidate struct {
	payload      store.Payload
	denseScore   float64
	sparseScore  float64
	keywordScore float64
	denseRank    int
}

// Combine unions dense and sparse results (deduplicated by chunk text),
// computes the keyword boost from heading metadata, and returns the top
// k by fused score. Ties break by original dense rank.
func (f *FusionReranker) Combine(dense, sparse []store.ScoredPoint, queryText string, k int) []Result {
	if k <= 0 {
		return []Result{}
	}

	unranked := len(dense) + len(sparse) + 1
	candidates := make(map[string]*candidate)

	for rank, sp := range dense {
		c, ok := candidates[sp.Payload.Text]
		if !ok {
			c = &candidate{payload: sp.Payload, denseRank: unranked}
			candidates[sp.Payload.Text] = c
		}
		c.denseScore = sp.Score
		c.denseRank = rank
	}
	for _, sp := range sparse {
		c, ok := candidates[sp.Payload.Text]
		if !ok {
			c = &candidate{payload: sp.Payload, denseRank: unranked}
			candidates[sp.Payload.Text] = c
		}
		c.sparseScore = sp.Score
	}

	terms := queryTerms(queryText)
	ranked := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		c.keywordScore = keywordScore(c.payload, terms)
		ranked = append(ranked, c)
	}

	sort.Slice(ranked, func(i, j int) bool {
		si := f.finalScore(ranked[i])
		sj := f.finalScore(ranked[j])
		if si != sj {
			return si > sj
		}
		if ranked[i].denseRank != ranked[j].denseRank {
			return ranked[i].denseRank < ranked[j].denseRank
		}
		return ranked[i].payload.Text < ranked[j].payload.Text
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	results := make([]Result, len(ranked))
	for i, c := range ranked {
		results[i] = Result{
			Payload:      c.payload,
			Score:        f.finalScore(c),
			DenseScore:   c.denseScore,
			SparseScore:  c.sparseScore,
			KeywordScore: c.keywordScore,
		}
	}
	return results
}

func (f *FusionReranker) finalScore(c *candidate) float64 {
	return f.weights.Dense*c.denseScore +
		f.weights.Sparse*c.sparseScore +
		f.weights.Keyword*c.keywordScore
}

// queryTerms lowercases and splits the query on whitespace.
func queryTerms(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// keywordScore sums term matches over the heading-level fields and the
// section/subsection fields. Matching is case-insensitive substring
// containment, so "fireball" matches the heading "Fireball Storm".
func keywordScore(p store.Payload, terms []string) float64 {
	if len(terms) == 0 || len(p.Metadata) == 0 {
		return 0
	}

	var score float64
	for level := 1; level <= maxHeadingLevel; level++ {
		field := p.Metadata[fmt.Sprintf("h%d", level)]
		if field == "" {
			continue
		}
		score += float64(countMatches(field, terms)) * float64(7-level) * headingWeightStep
	}
	for _, key := range []string{structure.MetaSection, structure.MetaSubsection} {
		if field := p.Metadata[key]; field != "" {
			score += float64(countMatches(field, terms)) * sectionMatchWeight
		}
	}
	return score
}

func countMatches(field string, terms []string) int {
	lower := strings.ToLower(field)
	n := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			n++
		}
	}
	return n
}
