package service

import (
	"math"
	"sort"

	"github.com/andino-labs/policychat/internal/domain"
)

// ScoredChunk is an embedding record paired with its similarity to a query
type ScoredChunk struct {
	Embedding domain.DocumentEmbedding
	Score     float64
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 for mismatched lengths or zero-magnitude vectors, which ranks
// degenerate records below any threshold instead of failing the query.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rank scores candidates against the query vector and returns those whose
// similarity meets threshold, best first, at most topK. The sort is stable
// over the candidate order, so when scores tie the earlier candidate wins;
// callers pass candidates ordered most-recently-updated first to make the
// tie-break deterministic.
func Rank(queryVec []float32, candidates []domain.DocumentEmbedding, threshold float64, topK int) []ScoredChunk {
	scored := make([]ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		score := CosineSimilarity(queryVec, c.Vector)
		if score >= threshold {
			scored = append(scored, ScoredChunk{Embedding: c, Score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}
