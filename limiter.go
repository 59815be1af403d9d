package quanta

// sanitizeK ensures k is within valid bounds [1, maxResults].
//
// If k is <= 0 or exceeds maxResults, it returns maxResults.
func sanitizeK(k, maxResults int) int {
	if k <= 0 || k > maxResults {
		return maxResults
	}
	return k
}

// limitResults applies k-limiting to a result slice.
func limitResults(results []SearchResult, k int) []SearchResult {
	k = sanitizeK(k, len(results))
	return results[:k]
}

// autocutResults applies the autocut algorithm to a scored result slice.
//
// cutoff is the number of extrema to find before cutting; -1 disables
// autocut and returns the results unchanged.
func autocutResults(results []SearchResult, cutoff int) []SearchResult {
	if cutoff == -1 || len(results) == 0 {
		return results
	}

	scores := make([]float32, len(results))
	for i, result := range results {
		scores[i] = result.Score
	}
	return results[:Autocut(scores, cutoff)]
}

// Autocut determines the optimal cutoff point in a score distribution.
//
// It compares the normalized score curve against an ideal linear decay and
// cuts before the cutOff-th local extremum of the difference. Useful when
// the caller wants "the cluster of good hits" rather than a fixed k.
func Autocut(yValues []float32, cutOff int) int {
	if len(yValues) <= 2 {
		return len(yValues)
	}

	diff := make([]float32, len(yValues))
	step := 1. / (float32(len(yValues)) - 1.)

	for i := range yValues {
		xValue := 0. + float32(i)*step
		yValueNorm := (yValues[i] - yValues[0]) / (yValues[len(yValues)-1] - yValues[0])
		diff[i] = yValueNorm - xValue
	}

	extremaCount := 0
	for i := range diff {
		if i == 0 {
			continue // we want the index _before_ the extrema
		}

		if i == len(diff)-1 { // for the last element there is no "next" point
			if diff[i] > diff[i-1] && diff[i] > diff[i-2] {
				extremaCount += 1
				if extremaCount >= cutOff {
					return i
				}
			}
		} else {
			if diff[i] > diff[i-1] && diff[i] > diff[i+1] {
				extremaCount += 1
				if extremaCount >= cutOff {
					return i
				}
			}
		}
	}
	return len(yValues)
}
