// Package search implements the hybrid retrieval engine: parallel
// dense and lexical searches over the hybrid index, fused and reranked
// with a keyword boost derived from heading metadata.
package search

import (
	"fmt"

	"github.com/loreseek/loreseek/internal/errors"
	"github.com/loreseek/loreseek/internal/store"
)

// Weights controls the contribution of each retrieval signal to the
// fused score. Each weight must be in [0, 1].
type Weights struct {
	Dense   float64 `json:"dense" yaml:"dense"`
	Sparse  float64 `json:"sparse" yaml:"sparse"`
	Keyword float64 `json:"keyword" yaml:"keyword"`
}

// DefaultWeights favors semantic recall while keeping exact-terminology
// precision from the lexical and keyword signals.
func DefaultWeights() Weights {
	return Weights{Dense: 0.5, Sparse: 0.3, Keyword: 0.2}
}

// Validate checks each weight is within [0, 1].
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"dense": w.Dense, "sparse": w.Sparse, "keyword": w.Keyword,
	} {
		if v < 0 || v > 1 {
			return errors.New(errors.ErrCodeInvalidWeights,
				fmt.Sprintf("weight %s = %v outside [0, 1]", name, v), nil)
		}
	}
	return nil
}

// Result is one fused retrieval result.
type Result struct {
	Payload store.Payload `json:"payload"`

	// Score is the fused final score.
	Score float64 `json:"score"`

	// DenseScore, SparseScore, and KeywordScore are the individual
	// signals, kept for explain output.
	DenseScore   float64 `json:"dense_score"`
	SparseScore  float64 `json:"sparse_score"`
	KeywordScore float64 `json:"keyword_score"`
}
