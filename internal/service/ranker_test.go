package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andino-labs/policychat/internal/domain"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"scaled copy", []float32{1, 2, 3}, []float32{2, 4, 6}, 1.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0.0},
		{"empty", nil, nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func embeddingWithVector(id string, vec []float32, lastUpdate time.Time) domain.DocumentEmbedding {
	return domain.DocumentEmbedding{
		ID:         id,
		DocumentID: "doc-" + id,
		Vector:     vec,
		LastUpdate: lastUpdate,
	}
}

func TestRank_FiltersBelowThreshold(t *testing.T) {
	now := time.Now()
	query := []float32{1, 0}
	candidates := []domain.DocumentEmbedding{
		embeddingWithVector("close", []float32{1, 0.1}, now),
		embeddingWithVector("orthogonal", []float32{0, 1}, now),
	}

	ranked := Rank(query, candidates, 0.3, 5)

	require.Len(t, ranked, 1)
	assert.Equal(t, "close", ranked[0].Embedding.ID)
}

func TestRank_ThresholdIsInclusive(t *testing.T) {
	query := []float32{1, 0}
	candidates := []domain.DocumentEmbedding{
		embeddingWithVector("exact", []float32{1, 0}, time.Now()),
	}

	ranked := Rank(query, candidates, 1.0, 5)
	require.Len(t, ranked, 1)
	assert.InDelta(t, 1.0, ranked[0].Score, 1e-9)
}

func TestRank_OrdersByScoreDescending(t *testing.T) {
	now := time.Now()
	query := []float32{1, 0}
	candidates := []domain.DocumentEmbedding{
		embeddingWithVector("mid", []float32{1, 0.5}, now),
		embeddingWithVector("best", []float32{1, 0.01}, now),
		embeddingWithVector("worst", []float32{1, 1}, now),
	}

	ranked := Rank(query, candidates, 0.0, 5)

	require.Len(t, ranked, 3)
	assert.Equal(t, "best", ranked[0].Embedding.ID)
	assert.Equal(t, "mid", ranked[1].Embedding.ID)
	assert.Equal(t, "worst", ranked[2].Embedding.ID)
}

func TestRank_TopKLimit(t *testing.T) {
	now := time.Now()
	query := []float32{1, 0}
	candidates := make([]domain.DocumentEmbedding, 0, 8)
	for i := 0; i < 8; i++ {
		candidates = append(candidates, embeddingWithVector(
			string(rune('a'+i)), []float32{1, float32(i) * 0.1}, now))
	}

	ranked := Rank(query, candidates, 0.0, 5)
	assert.Len(t, ranked, 5)
}

func TestRank_StableTieBreak(t *testing.T) {
	// Equal vectors score identically; the earlier candidate must win.
	// Callers order candidates most-recently-updated first.
	now := time.Now()
	query := []float32{1, 0}
	vec := []float32{1, 0}
	candidates := []domain.DocumentEmbedding{
		embeddingWithVector("newer", vec, now),
		embeddingWithVector("older", vec, now.Add(-time.Hour)),
	}

	ranked := Rank(query, candidates, 0.3, 1)

	require.Len(t, ranked, 1)
	assert.Equal(t, "newer", ranked[0].Embedding.ID)
}

func TestRank_EmptyCandidates(t *testing.T) {
	ranked := Rank([]float32{1, 0}, nil, 0.3, 5)
	assert.Empty(t, ranked)
}
