package quanta

import "math"

// SquaredDistance computes the squared Euclidean (L2²) distance between two
// vectors. This is the metric used everywhere in the IVF-PQ pipeline:
// clustering, PQ encoding and the asymmetric distance tables. The square
// root is never taken because ordering is all that matters.
//
// Formula: sum((a[i] - b[i])^2)
//
// Time complexity: O(n) where n is the vector dimension
func SquaredDistance(a, b []float32) float32 {
	var sum float32
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

// Dot computes the dot product of two vectors.
//
// The probe selector relies on the decomposition
// ||c - q||² = ||c||² + ||q||² - 2·(q·c), dropping the ||q||² term that is
// constant across centroids, so the dot product is the only per-centroid
// work besides a table lookup of ||c||².
func Dot(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}

// Norm computes the L2 norm (Euclidean magnitude) of a vector.
//
// Formula: sqrt(sum(v[i]^2))
//
// The codec stores this value after the vector components for field formats
// that support it, so downstream consumers can compute cosine similarity
// without re-reading the whole vector.
func Norm(v []float32) float32 {
	return float32(math.Sqrt(float64(NormSquared(v))))
}

// NormSquared computes the squared L2 norm of a vector. Faster than Norm
// when only comparisons are needed (ordering is preserved).
func NormSquared(v []float32) float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	return sum
}

// CosineSimilarity computes the cosine similarity between a query vector and
// a stored vector whose magnitude was persisted alongside it.
//
// Passing the stored magnitude avoids recomputing ||b|| per document; only
// the query magnitude is derived on the fly.
func CosineSimilarity(a, b []float32, bMagnitude float32) float32 {
	aMagnitude := Norm(a)
	if aMagnitude == 0 || bMagnitude == 0 {
		return 0
	}
	return Dot(a, b) / (aMagnitude * bMagnitude)
}

// subtract computes a - b into a new vector. Used for residual encoding:
// residual = vector - assigned coarse centroid.
func subtract(a, b []float32) []float32 {
	result := make([]float32, len(a))
	for i := range a {
		result[i] = a[i] - b[i]
	}
	return result
}
