package quanta

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidProbeCount is returned when number_of_probes is < 1 or
	// exceeds the coarse centroid count.
	ErrInvalidProbeCount = errors.New("number_of_probes must be in [1, number of coarse centroids]")

	// ErrQueryDimsMismatch is returned when the query vector length does
	// not equal the field's configured dims.
	ErrQueryDimsMismatch = errors.New("query vector length does not match the field dims")
)

// AnnQuery selects the coarse partitions to probe for a query vector.
//
// For every coarse centroid c it computes the ranking score ||c||² - 2·(q·c).
// The omitted ||q||² term is constant across centroids for one query, so the
// ranking is the same as by full squared Euclidean distance at half the
// work (||c||² is precomputed on the centroid set).
//
// The numberOfProbes closest centroids become a disjunctive term filter over
// the field's centroid codes, which the surrounding engine uses to restrict
// candidate documents. numberOfProbes trades recall against latency.
//
// The JSON shape matches the wire request:
//
//	{"field": "embedding", "number_of_probes": 8, "query_vector": [0.1, ...]}
type AnnQuery struct {
	Field          string    `json:"field"`
	NumberOfProbes int       `json:"number_of_probes"`
	QueryVector    []float32 `json:"query_vector"`
}

// NewAnnQuery constructs a probe-selection query.
//
// number_of_probes < 1 is a configuration error raised here, eagerly, never
// deferred to scoring. The upper bound and the query vector length are
// checked against the field when the query is resolved (SelectProbes /
// ToFilter), since they depend on the field's trained model.
func NewAnnQuery(field string, numberOfProbes int, queryVector []float32) (*AnnQuery, error) {
	if numberOfProbes < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidProbeCount, numberOfProbes)
	}
	return &AnnQuery{
		Field:          field,
		NumberOfProbes: numberOfProbes,
		QueryVector:    queryVector,
	}, nil
}

// ParseAnnQuery unmarshals the JSON request shape and validates it.
func ParseAnnQuery(data []byte) (*AnnQuery, error) {
	var query AnnQuery
	if err := json.Unmarshal(data, &query); err != nil {
		return nil, fmt.Errorf("malformed ann query: %w", err)
	}
	return NewAnnQuery(query.Field, query.NumberOfProbes, query.QueryVector)
}

// SelectProbes returns the ids of the NumberOfProbes coarse centroids
// closest to the query vector, in ascending order of the ranking score.
//
// Ties favor the earlier-scanned centroid: a later candidate replaces a kept
// one only when its score is strictly smaller than the current worst.
func (q *AnnQuery) SelectProbes(coarse *CoarseCentroidSet) ([]uint16, error) {
	if q.NumberOfProbes < 1 || q.NumberOfProbes > coarse.Len() {
		return nil, fmt.Errorf("%w: got %d, centroids %d", ErrInvalidProbeCount, q.NumberOfProbes, coarse.Len())
	}
	if len(q.QueryVector) != coarse.Dims() {
		return nil, fmt.Errorf("%w: query has %d, field defines %d", ErrQueryDimsMismatch, len(q.QueryVector), coarse.Dims())
	}

	topScores := make([]float32, q.NumberOfProbes)
	topIndexes := make([]uint16, q.NumberOfProbes)
	for i := range topScores {
		topScores[i] = math.MaxFloat32
	}

	for i := 0; i < coarse.Len(); i++ {
		dot := Dot(q.QueryVector, coarse.Centroid(i))
		score := coarse.SquaredMagnitude(i) - 2*dot
		updateTop(topScores, topIndexes, score, uint16(i))
	}

	return topIndexes, nil
}

// ToFilter resolves the query against a schema and produces the probe-set
// filter: a disjunction of term filters over the field's centroid codes
// with minimum-should-match 1.
//
// Fails with a configuration error when the field is missing, is not a
// dense vector field, or the probe count / query length is invalid for the
// field's trained model.
func (q *AnnQuery) ToFilter(schema *Schema) (Filter, error) {
	fieldType, err := schema.VectorField(q.Field)
	if err != nil {
		return nil, err
	}

	probes, err := q.SelectProbes(fieldType.CoarseCentroids())
	if err != nil {
		return nil, fmt.Errorf("field [%s]: %w", q.Field, err)
	}

	should := make([]Filter, len(probes))
	for i, id := range probes {
		should[i] = NewTermFilter(fieldType.CentroidValueName(), EncodeCentroidID(id))
	}
	return &BooleanFilter{Should: should, MinimumShouldMatch: 1}, nil
}

// updateTop inserts a candidate into the fixed-size top list kept sorted in
// ascending score order.
//
// Admission is strict-less-than against the current worst kept score, so
// equal scores keep the earlier-scanned centroid. An accepted candidate is
// placed at the tail and bubbled down by adjacent swaps, O(len(scores)) per
// acceptance.
func updateTop(scores []float32, indexes []uint16, newScore float32, newIndex uint16) {
	n := len(scores)
	if newScore >= scores[n-1] {
		return
	}
	scores[n-1] = newScore
	indexes[n-1] = newIndex

	for j := n - 2; j >= 0; j-- {
		if scores[j] > scores[j+1] {
			scores[j], scores[j+1] = scores[j+1], scores[j]
			indexes[j], indexes[j+1] = indexes[j+1], indexes[j]
		} else {
			break
		}
	}
}
