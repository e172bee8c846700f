package gallery

import "math"

// CosineSimilarity scores a against b in [-1, 1], where 1 means same
// direction. Mismatched lengths and empty or zero-magnitude vectors score 0.
// Search ranks entries with the same kernel, so a match score always equals
// CosineSimilarity of the query and the matched embedding.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	return cosine(a, b, norm(a), norm(b))
}

// cosine is the shared scoring kernel. Magnitudes are passed in so the
// gallery can cache them per entry. Products accumulate in float64.
func cosine(a, b []float32, normA, normB float64) float64 {
	if len(a) == 0 || degenerate(normA) || degenerate(normB) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	similarity := sum / (normA * normB)
	return max(-1, min(1, similarity))
}

// norm returns the Euclidean length of v.
func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// degenerate reports whether a vector magnitude cannot be divided by.
func degenerate(n float64) bool {
	return n == 0 || math.IsNaN(n) || math.IsInf(n, 0)
}
