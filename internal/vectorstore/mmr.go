package vectorstore

import (
	"math"
	"sort"
)

// cosine returns the cosine similarity of a and b, or 0 if either is zero
// or their lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// topK returns the indices of the k vectors most similar to query, best first.
func topK(query []float32, vecs [][]float32, k int) []int {
	idx := make([]int, len(vecs))
	scores := make([]float64, len(vecs))
	for i, v := range vecs {
		idx[i] = i
		scores[i] = cosine(query, v)
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	if k < len(idx) {
		idx = idx[:k]
	}
	return idx
}

// mmr picks up to k candidate indices by maximal marginal relevance. The
// first pick is the candidate closest to the query; each later pick
// maximises lambda*sim(query) - (1-lambda)*max sim(already picked).
func mmr(query []float32, candidates [][]float32, k int, lambda float64) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	k = min(k, len(candidates))

	toQuery := make([]float64, len(candidates))
	for i, c := range candidates {
		toQuery[i] = cosine(query, c)
	}

	picked := make([]int, 0, k)
	used := make([]bool, len(candidates))
	for len(picked) < k {
		best, bestScore := -1, math.Inf(-1)
		for i, c := range candidates {
			if used[i] {
				continue
			}
			redundancy := 0.0
			if len(picked) > 0 {
				redundancy = math.Inf(-1)
				for _, j := range picked {
					redundancy = math.Max(redundancy, cosine(c, candidates[j]))
				}
			}
			score := lambda*toQuery[i] - (1-lambda)*redundancy
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		used[best] = true
		picked = append(picked, best)
	}
	return picked
}
