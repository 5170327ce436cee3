// Package retrieval implements pure in-process similarity ranking over
// candidate embedding vectors. It performs no I/O; callers fetch candidates
// from storage and embed queries through the embedding collaborator.
package retrieval

import (
	"fmt"
	"math"
	"sort"
)

// Candidate pairs an identifier with its embedding vector.
type Candidate struct {
	ID     string
	Vector []float32
}

// Result is one ranked candidate. Results only live for the duration of a
// single retrieval call.
type Result struct {
	ID    string
	Score float64
}

// Rank orders candidates by cosine similarity to the query, highest first,
// and returns at most topK results. Equal scores keep the candidates' input
// order (stable sort over the original index), so ranking is deterministic.
//
// A zero-norm vector on either side scores 0 rather than dividing by zero.
func Rank(query []float32, candidates []Candidate, topK int) ([]Result, error) {
	if topK <= 0 {
		return nil, nil
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) != len(query) {
			return nil, fmt.Errorf("dimension mismatch: query %d, candidate %q %d", len(query), c.ID, len(c.Vector))
		}
		results = append(results, Result{ID: c.ID, Score: Cosine(query, c.Vector)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Cosine computes cosine similarity in [-1, 1]. Zero-norm input yields 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
