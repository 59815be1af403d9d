package quanta

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// DefaultIterations is the default number of k-means refinement iterations.
//
// Both clustering variants run a fixed iteration count with no convergence
// check; callers that want convergence-based stopping must add it on top.
const DefaultIterations = 10

var (
	// ErrNoTrainingVectors is returned when clustering is invoked with an
	// empty training set.
	ErrNoTrainingVectors = errors.New("no training vectors")

	// ErrInvalidClusterCount is returned when k is not in [1, len(vectors)].
	ErrInvalidClusterCount = errors.New("cluster count must be in [1, number of vectors]")

	// ErrInvalidIterations is returned when the iteration count is < 1.
	ErrInvalidIterations = errors.New("iteration count must be at least 1")
)

// Lloyd runs plain k-means clustering for a fixed number of iterations.
//
// Each iteration assigns every vector to its nearest centroid by exhaustive
// scan over all k centroids (squared Euclidean distance), then recomputes
// each centroid as the mean of its assigned vectors. A cluster that receives
// no assignments keeps its previous position instead of degenerating to NaN.
//
// Initial centroids are chosen by reservoir sampling (see seedCentroids):
// a uniform random sample of k training vectors, not a density-aware seeding.
// Both clustering variants seed the same way from the same rng state.
//
// Returns the k centroids and, for each input vector, the index of the
// cluster it was assigned to in the final iteration.
//
// Time complexity: O(iterations × k × n × dims).
func Lloyd(vectors [][]float32, k, iterations int, rng *rand.Rand) ([][]float32, []int, error) {
	if err := validateClustering(vectors, k, iterations); err != nil {
		return nil, nil, err
	}

	dims := len(vectors[0])
	centroids := seedCentroids(vectors, k, rng)
	assignments := make([]int, len(vectors))

	for iter := 0; iter < iterations; iter++ {
		sums := newAccumulator(k, dims)
		counts := make([]int, k)

		// Assignment step: exhaustive nearest-centroid scan.
		for i, vector := range vectors {
			best := 0
			bestDist := float32(math.Inf(1))
			for c, centroid := range centroids {
				dist := SquaredDistance(vector, centroid)
				if dist < bestDist {
					best = c
					bestDist = dist
				}
			}
			assignments[i] = best
			counts[best]++
			accumulate(sums[best], vector)
		}

		centroids = updateCentroids(centroids, sums, counts)
	}

	return centroids, assignments, nil
}

// LloydSort runs the accelerated k-means variant.
//
// Based on Phillips, "Acceleration of k-means and related clustering
// algorithms" (ALENEX 2002). After each update step it recomputes the full
// matrix of squared inter-centroid distances and, per centroid, the list of
// all centroids sorted by ascending distance from it.
//
// The first iteration is identical to Lloyd. On later iterations, a vector
// previously assigned to centroid b with squared distance inClassDist visits
// candidates in the precomputed ascending order relative to b and stops as
// soon as a candidate's distance-to-b is >= 4*inClassDist, the triangle
// inequality bound under which no such centroid can beat the current
// assignment. This prunes most comparisons for large k. The bound uses the
// previous iteration's assignment distance, so it is exact once centroids
// have mostly settled; early iterations with large centroid movement may
// keep an assignment the exhaustive scan would change.
//
// Seeding, the fixed iteration count and the empty-cluster rule are shared
// with Lloyd.
func LloydSort(vectors [][]float32, k, iterations int, rng *rand.Rand) ([][]float32, []int, error) {
	if err := validateClustering(vectors, k, iterations); err != nil {
		return nil, nil, err
	}

	dims := len(vectors[0])
	centroids := seedCentroids(vectors, k, rng)
	assignments := make([]int, len(vectors))
	assignDists := make([]float32, len(vectors))

	// centroidDists[i][j] is the squared distance between centroids i and j;
	// neighborOrder[i] lists all centroid indexes sorted by ascending
	// distance from centroid i (so neighborOrder[i][0] == i).
	centroidDists := make([][]float32, k)
	neighborOrder := make([][]int, k)

	for iter := 0; iter < iterations; iter++ {
		sums := newAccumulator(k, dims)
		counts := make([]int, k)

		for i, vector := range vectors {
			var best int
			var bestDist float32
			if iter == 0 {
				best = 0
				bestDist = float32(math.Inf(1))
			} else {
				best = assignments[i]
				bestDist = assignDists[i]
			}
			prev := best
			inClassDist := bestDist

			for c := 0; c < k; c++ {
				candidate := c
				if iter > 0 {
					candidate = neighborOrder[prev][c]
					if centroidDists[prev][candidate] >= 4*inClassDist {
						break
					}
				}
				dist := SquaredDistance(vector, centroids[candidate])
				if dist < bestDist {
					best = candidate
					bestDist = dist
				}
			}

			assignments[i] = best
			assignDists[i] = bestDist
			counts[best]++
			accumulate(sums[best], vector)
		}

		centroids = updateCentroids(centroids, sums, counts)

		// Refresh the inter-centroid distance cache against the moved
		// centroids. O(k² × dims) per iteration, amortized by the pruning
		// it enables over n vectors.
		for i := 0; i < k; i++ {
			if centroidDists[i] == nil {
				centroidDists[i] = make([]float32, k)
			}
		}
		for i := 0; i < k; i++ {
			centroidDists[i][i] = 0
			for j := i + 1; j < k; j++ {
				d := SquaredDistance(centroids[i], centroids[j])
				centroidDists[i][j] = d
				centroidDists[j][i] = d
			}
		}
		for i := 0; i < k; i++ {
			neighborOrder[i] = sortedByDistance(centroidDists[i])
		}
	}

	return centroids, assignments, nil
}

func validateClustering(vectors [][]float32, k, iterations int) error {
	if len(vectors) == 0 {
		return ErrNoTrainingVectors
	}
	if k < 1 || k > len(vectors) {
		return fmt.Errorf("%w: k=%d, vectors=%d", ErrInvalidClusterCount, k, len(vectors))
	}
	if iterations < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidIterations, iterations)
	}
	return nil
}

// seedCentroids picks k initial centroids by reservoir sampling.
//
// The first k vectors fill the k slots directly; each later vector at
// position i replaces a uniformly chosen slot with probability k/i. The
// result is an unbiased uniform sample of k training vectors.
func seedCentroids(vectors [][]float32, k int, rng *rand.Rand) [][]float32 {
	centroids := make([][]float32, k)
	for i, vector := range vectors {
		if i < k {
			centroids[i] = cloneVector(vector)
		} else if rng.Float64() < float64(k)/float64(i) {
			centroids[rng.Intn(k)] = cloneVector(vector)
		}
	}
	return centroids
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

func newAccumulator(k, dims int) [][]float32 {
	sums := make([][]float32, k)
	for i := range sums {
		sums[i] = make([]float32, dims)
	}
	return sums
}

func accumulate(sum, vector []float32) {
	for d := range vector {
		sum[d] += vector[d]
	}
}

// updateCentroids turns per-cluster sums into means. A cluster with no
// assignments keeps its previous centroid rather than dividing by zero.
func updateCentroids(previous, sums [][]float32, counts []int) [][]float32 {
	next := make([][]float32, len(previous))
	for c := range next {
		if counts[c] == 0 {
			next[c] = previous[c]
			continue
		}
		mean := sums[c]
		inv := 1 / float32(counts[c])
		for d := range mean {
			mean[d] *= inv
		}
		next[c] = mean
	}
	return next
}

// sortedByDistance returns centroid indexes ordered by ascending distance.
func sortedByDistance(dists []float32) []int {
	order := make([]int, len(dists))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return dists[order[a]] < dists[order[b]]
	})
	return order
}
