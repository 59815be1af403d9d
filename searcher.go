package quanta

import (
	"fmt"
)

// Index ties a schema and a doc-value store into an end-to-end ANN engine.
//
// Indexing runs the vector field mapper; searching composes the two query
// stages: AnnQuery narrows candidates to the probe set, AnnPQQuery ranks
// them by asymmetric PQ distance. Any number of searches may run
// concurrently with indexing; the store serializes its own writes and all
// trained structures are immutable.
type Index struct {
	schema *Schema
	store  *DocValues
}

// NewIndex creates an engine over a schema with an empty document store.
func NewIndex(schema *Schema) *Index {
	return &Index{
		schema: schema,
		store:  NewDocValues(),
	}
}

// Schema returns the index schema.
func (ix *Index) Schema() *Schema {
	return ix.schema
}

// Store returns the underlying doc-value store.
func (ix *Index) Store() *DocValues {
	return ix.store
}

// IndexVector encodes and stores one document's vector field.
func (ix *Index) IndexVector(docID uint32, field string, vector []float32) error {
	fieldType, err := ix.schema.VectorField(field)
	if err != nil {
		return err
	}
	return NewVectorFieldMapper(fieldType, ix.store).Index(docID, vector)
}

// NewSearch creates a search builder with defaults: 1 probe, k=10, no
// autocut.
func (ix *Index) NewSearch() *AnnSearch {
	return &AnnSearch{
		index:          ix,
		numberOfProbes: 1,
		k:              10,
		cutoff:         -1,
	}
}

// AnnSearch is a builder for one approximate nearest neighbor search.
type AnnSearch struct {
	index          *Index
	field          string
	queryVector    []float32
	numberOfProbes int
	k              int
	cutoff         int
}

// WithField sets the vector field to search.
func (s *AnnSearch) WithField(field string) *AnnSearch {
	s.field = field
	return s
}

// WithQuery sets the query vector.
func (s *AnnSearch) WithQuery(queryVector []float32) *AnnSearch {
	s.queryVector = queryVector
	return s
}

// WithProbes sets the number of coarse partitions to probe. More probes
// raise recall and cost.
func (s *AnnSearch) WithProbes(numberOfProbes int) *AnnSearch {
	s.numberOfProbes = numberOfProbes
	return s
}

// WithK sets the number of results to return.
func (s *AnnSearch) WithK(k int) *AnnSearch {
	s.k = k
	return s
}

// WithCutoff enables autocut on the scored results: cut before the cutoff-th
// extremum of the score curve. -1 (the default) disables it.
func (s *AnnSearch) WithCutoff(cutoff int) *AnnSearch {
	s.cutoff = cutoff
	return s
}

// Execute runs the two-stage search and returns documents in descending
// score order.
//
// Stage one selects the probe set and builds the disjunctive centroid
// filter. Stage two computes the residual of the query against its own
// nearest coarse centroid (the first probe, mirroring the residual encoding
// applied to documents at index time), precomputes the distance tables and
// scores every candidate behind the filter.
func (s *AnnSearch) Execute() ([]SearchResult, error) {
	if s.field == "" {
		return nil, fmt.Errorf("%w: search field is not set", ErrUnknownField)
	}
	if len(s.queryVector) == 0 {
		return nil, fmt.Errorf("field [%s]: search query vector is not set", s.field)
	}

	fieldType, err := s.index.schema.VectorField(s.field)
	if err != nil {
		return nil, err
	}

	query, err := NewAnnQuery(s.field, s.numberOfProbes, s.queryVector)
	if err != nil {
		return nil, err
	}

	probes, err := query.SelectProbes(fieldType.CoarseCentroids())
	if err != nil {
		return nil, fmt.Errorf("field [%s]: %w", s.field, err)
	}

	should := make([]Filter, len(probes))
	for i, id := range probes {
		should[i] = NewTermFilter(fieldType.CentroidValueName(), EncodeCentroidID(id))
	}
	probeFilter := &BooleanFilter{Should: should, MinimumShouldMatch: 1}

	// probes is sorted by ascending score, so probes[0] is the query's own
	// coarse assignment.
	assigned := fieldType.CoarseCentroids().Centroid(int(probes[0]))
	residual := subtract(s.queryVector, assigned)

	pqQuery, err := NewAnnPQQuery(fieldType, residual, probeFilter)
	if err != nil {
		return nil, err
	}

	results, err := pqQuery.Execute(s.index.store, s.k)
	if err != nil {
		return nil, err
	}
	return autocutResults(results, s.cutoff), nil
}
