package quanta

import (
	"github.com/RoaringBitmap/roaring"
)

// Filter selects a set of documents from a DocValues store.
//
// Filters are composable values, independent of any execution engine: the
// ANN pipeline only needs "build a disjunctive equality filter over a field
// and a set of values", and hands the result to whatever drives document
// iteration. Apply never mutates the store.
type Filter interface {
	// Apply evaluates the filter and returns the matching document ids.
	// The returned bitmap is owned by the caller.
	Apply(store *DocValues) *roaring.Bitmap
}

// Compile-time checks that both filter variants implement Filter.
var (
	_ Filter = (*TermFilter)(nil)
	_ Filter = (*BooleanFilter)(nil)
)

// TermFilter matches documents whose stored binary value for Field equals
// Value exactly.
type TermFilter struct {
	Field string
	Value []byte
}

// NewTermFilter creates an equality filter over a field value.
func NewTermFilter(field string, value []byte) *TermFilter {
	return &TermFilter{Field: field, Value: value}
}

// Apply resolves the term against the store's postings.
func (f *TermFilter) Apply(store *DocValues) *roaring.Bitmap {
	return store.Term(f.Field, f.Value)
}

// BooleanFilter combines child filters with "should" semantics: a document
// matches when at least MinimumShouldMatch of the Should clauses match it.
//
// The coarse probe selector emits a BooleanFilter of term filters over the
// selected centroid codes with MinimumShouldMatch=1, i.e. a disjunction.
type BooleanFilter struct {
	Should             []Filter
	MinimumShouldMatch int
}

// Apply evaluates every clause and keeps documents matched by at least
// MinimumShouldMatch of them. A minimum of 0 or 1 degenerates to a plain
// union.
func (f *BooleanFilter) Apply(store *DocValues) *roaring.Bitmap {
	if len(f.Should) == 0 {
		return roaring.New()
	}

	clauses := make([]*roaring.Bitmap, len(f.Should))
	for i, should := range f.Should {
		clauses[i] = should.Apply(store)
	}

	if f.MinimumShouldMatch <= 1 {
		return roaring.FastOr(clauses...)
	}

	// Count clause matches per document. Candidate docs come from the
	// union; a doc qualifies once enough clauses contain it.
	union := roaring.FastOr(clauses...)
	result := roaring.New()
	it := union.Iterator()
	for it.HasNext() {
		docID := it.Next()
		matches := 0
		for _, clause := range clauses {
			if clause.Contains(docID) {
				matches++
				if matches >= f.MinimumShouldMatch {
					result.Add(docID)
					break
				}
			}
		}
	}
	return result
}
