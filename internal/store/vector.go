package store

import (
	"context"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Embedding is a stored vector associated with an agent or event, used for
// similarity search (e.g. "agents with similar behavioral fingerprints").
type Embedding struct {
	ID      uuid.UUID
	Subject string // e.g. "agent", "event"
	Vector  []float32
}

// UpsertEmbedding stores or replaces the embedding for (subject, id).
func (s *Store) UpsertEmbedding(ctx context.Context, e Embedding) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO embeddings (id, subject, vector)
		VALUES ($1, $2, $3)
		ON CONFLICT (id, subject) DO UPDATE SET vector = EXCLUDED.vector`,
		e.ID, e.Subject, pgvector.NewVector(e.Vector))
	return classify(err, "upsert embedding")
}

// SimilarityMatch is one result of a top-K vector lookup.
type SimilarityMatch struct {
	ID         uuid.UUID
	Similarity float64
}

// TopKSimilar runs a cosine-similarity search against subject's embeddings,
// returning up to k matches at or above threshold. The database performs the
// nearest-neighbor ordering (pgvector's <=> operator); this method converts
// the resulting distance into a similarity score and applies the threshold.
func (s *Store) TopKSimilar(ctx context.Context, subject string, query []float32, k int, threshold float64) ([]SimilarityMatch, error) {
	if k <= 0 {
		k = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, 1 - (vector <=> $1) AS similarity
		FROM embeddings WHERE subject = $2
		ORDER BY vector <=> $1
		LIMIT $3`,
		pgvector.NewVector(query), subject, k)
	if err != nil {
		return nil, classify(err, "vector search")
	}
	defer rows.Close()

	var out []SimilarityMatch
	for rows.Next() {
		var m SimilarityMatch
		if err := rows.Scan(&m.ID, &m.Similarity); err != nil {
			return nil, classify(err, "scan similarity match")
		}
		if m.Similarity >= threshold {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out, classify(rows.Err(), "vector search")
}

// CosineSimilarity computes similarity in-process, used by callers scoring
// small in-memory candidate sets without a round trip to the database.
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
