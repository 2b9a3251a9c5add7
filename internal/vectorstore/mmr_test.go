package vectorstore

import (
	"math"
	"reflect"
	"testing"
)

func TestCosine(t *testing.T) {
	if got := cosine([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical vectors: %v", got)
	}
	if got := cosine([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal vectors: %v", got)
	}
	if got := cosine([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Errorf("zero vector: %v", got)
	}
	if got := cosine([]float32{1}, []float32{1, 1}); got != 0 {
		t.Errorf("length mismatch: %v", got)
	}
}

func TestTopK(t *testing.T) {
	vecs := [][]float32{{0, 1}, {1, 0}, {1, 1}}
	got := topK([]float32{1, 0}, vecs, 2)
	if !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("topK = %v", got)
	}
	if got := topK([]float32{1, 0}, vecs, 10); len(got) != 3 {
		t.Errorf("k larger than pool should return everything, got %v", got)
	}
}

func TestMMR_prefersDiversity(t *testing.T) {
	query := []float32{1, 0}
	cands := [][]float32{
		{1, 0},
		{1, 0.01},
		{0, 1},
	}
	got := mmr(query, cands, 2, 0.3)
	if !reflect.DeepEqual(got, []int{0, 2}) {
		t.Errorf("mmr = %v, want [0 2]", got)
	}

	// With lambda 1 MMR degenerates to plain relevance ranking.
	got = mmr(query, cands, 2, 1)
	if !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("mmr(lambda=1) = %v, want [0 1]", got)
	}
}

func TestMMR_bounds(t *testing.T) {
	if got := mmr([]float32{1}, nil, 3, 0.5); got != nil {
		t.Errorf("empty candidates: %v", got)
	}
	if got := mmr([]float32{1}, [][]float32{{1}}, 3, 0.5); len(got) != 1 {
		t.Errorf("k beyond candidates: %v", got)
	}
}
