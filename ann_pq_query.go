package quanta

import (
	"fmt"
	"sort"
)

// minScoreDistance floors the reconstructed distance before inversion, so a
// document whose PQ code matches the residual query exactly still yields a
// finite score. Any distance at or below the floor scores the same maximum.
const minScoreDistance = float32(1e-9)

// SearchResult is one scored document.
type SearchResult struct {
	DocID uint32
	Score float32
}

// AnnPQQuery ranks candidate documents by asymmetric product-quantization
// distance.
//
// Construction precomputes, once per query, an M x 256 table where entry
// [m][c] is the squared Euclidean distance between the m-th sub-vector of
// the residual query and codeword c of sub-quantizer m, using the full
// decomposition ||c||² + ||rq_m||² - 2·(c·rq_m). Unlike the coarse-probe
// ranking, both magnitude terms are kept: the per-subspace distances are
// summed across sub-spaces, so absolute values matter.
//
// Scoring a document reads its stored M-byte PQ code and sums one table
// lookup per byte; the score is the inverse of that distance so closer
// documents score higher.
//
// The query only visits documents admitted by its inner filter (typically
// the probe-set filter from AnnQuery). It holds no mutable state after
// construction: scoring is safe to call repeatedly, in any document order,
// and concurrently, and results depend only on document content, so the
// query is reusable across repeated evaluation of the same index.
type AnnPQQuery struct {
	fieldType *VectorFieldType
	inner     Filter

	// tables[m][c] is the squared distance between sub-space m of the
	// residual query and codeword c of sub-quantizer m.
	tables [][]float32
}

// NewAnnPQQuery precomputes the distance tables for a residual query vector.
//
// The residual is the query vector after subtracting its assigned coarse
// centroid, mirroring how document PQ codes were produced at index time.
// A residual of the wrong length is a configuration error.
func NewAnnPQQuery(fieldType *VectorFieldType, residualQuery []float32, inner Filter) (*AnnPQQuery, error) {
	pq := fieldType.Quantizer()
	if len(residualQuery) != pq.Dims() {
		return nil, fmt.Errorf("field [%s]: %w: residual has %d, field defines %d",
			fieldType.Name(), ErrQueryDimsMismatch, len(residualQuery), pq.Dims())
	}
	if inner == nil {
		return nil, fmt.Errorf("field [%s]: inner filter is required", fieldType.Name())
	}

	m := pq.M()
	dsub := pq.SubDims()

	// ||rq_m||² per sub-space, computed once and reused for all 256
	// codewords of that sub-space.
	residualSquaredMagnitudes := make([]float32, m)
	for mi := 0; mi < m; mi++ {
		residualSquaredMagnitudes[mi] = NormSquared(residualQuery[mi*dsub : (mi+1)*dsub])
	}

	tables := make([][]float32, m)
	for mi := 0; mi < m; mi++ {
		sub := residualQuery[mi*dsub : (mi+1)*dsub]
		tables[mi] = make([]float32, ProductCentroidCount)
		for c := 0; c < ProductCentroidCount; c++ {
			dot := Dot(sub, pq.Codeword(mi, c))
			tables[mi][c] = pq.squaredMagnitudes[mi][c] + residualSquaredMagnitudes[mi] - 2*dot
		}
	}

	return &AnnPQQuery{
		fieldType: fieldType,
		inner:     inner,
		tables:    tables,
	}, nil
}

// ScoreCode scores a raw PQ code: the approximate squared distance is the
// sum of one table lookup per code byte, and the score is its inverse
// (floored at minScoreDistance so an exact match stays finite).
func (q *AnnPQQuery) ScoreCode(code []byte) (float32, error) {
	if len(code) != len(q.tables) {
		return 0, fmt.Errorf("%w: has %d bytes, want %d", ErrMalformedCode, len(code), len(q.tables))
	}
	var distance float32
	for m, c := range code {
		distance += q.tables[m][c]
	}
	if distance < minScoreDistance {
		distance = minScoreDistance
	}
	return 1 / distance, nil
}

// Score scores one candidate document by its stored PQ code.
func (q *AnnPQQuery) Score(store *DocValues, docID uint32) (float32, error) {
	code, ok := store.Get(q.fieldType.ProductCodeValueName(), docID)
	if !ok {
		return 0, fmt.Errorf("field [%s]: doc %d has no product quantization code", q.fieldType.Name(), docID)
	}
	return q.ScoreCode(code)
}

// Execute evaluates the inner filter, scores every candidate document and
// returns the k best in descending score order (ties break toward the lower
// document id for deterministic output). k <= 0 returns all candidates.
func (q *AnnPQQuery) Execute(store *DocValues, k int) ([]SearchResult, error) {
	candidates := q.inner.Apply(store)

	results := make([]SearchResult, 0, candidates.GetCardinality())
	it := candidates.Iterator()
	for it.HasNext() {
		docID := it.Next()
		score, err := q.Score(store, docID)
		if err != nil {
			return nil, err
		}
		results = append(results, SearchResult{DocID: docID, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})

	return limitResults(results, k), nil
}
