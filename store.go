package quanta

import (
	"errors"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// ErrDuplicateValue is returned when a binary value is written twice for the
// same field and document. The first stored value is left untouched.
var ErrDuplicateValue = errors.New("field already has a value for this document")

// DocValues is an in-memory store of per-document binary values, keyed by
// field name and document id.
//
// Besides the raw values it maintains roaring-bitmap postings per stored
// value, so term filters resolve to document bitmaps without scanning. This
// is the concrete stand-in for the index engine the ANN queries delegate
// document iteration to.
//
// Thread-safety: all methods are safe for concurrent use. Writes take the
// write lock; reads and filter evaluation take the read lock only.
type DocValues struct {
	mu sync.RWMutex

	// values[field][docID] is the stored binary value.
	values map[string]map[uint32][]byte

	// postings[field][string(value)] is the set of documents storing that
	// exact value under the field.
	postings map[string]map[string]*roaring.Bitmap

	// docs is the set of all document ids with at least one value.
	docs *roaring.Bitmap
}

// NewDocValues creates an empty store.
func NewDocValues() *DocValues {
	return &DocValues{
		values:   make(map[string]map[uint32][]byte),
		postings: make(map[string]map[string]*roaring.Bitmap),
		docs:     roaring.New(),
	}
}

// Put stores a binary value for a field of a document.
//
// A document may hold at most one value per field: a duplicate write fails
// with ErrDuplicateValue and does not alter the first stored value. The
// value is copied, so callers may reuse their buffer.
func (s *DocValues) Put(field string, docID uint32, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fieldValues, ok := s.values[field]
	if !ok {
		fieldValues = make(map[uint32][]byte)
		s.values[field] = fieldValues
	}
	if _, exists := fieldValues[docID]; exists {
		return fmt.Errorf("%w: field [%s], doc %d", ErrDuplicateValue, field, docID)
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	fieldValues[docID] = stored

	fieldPostings, ok := s.postings[field]
	if !ok {
		fieldPostings = make(map[string]*roaring.Bitmap)
		s.postings[field] = fieldPostings
	}
	term := string(stored)
	bitmap, ok := fieldPostings[term]
	if !ok {
		bitmap = roaring.New()
		fieldPostings[term] = bitmap
	}
	bitmap.Add(docID)
	s.docs.Add(docID)

	return nil
}

// Get returns the stored value for a field of a document. The returned
// slice is owned by the store and must not be modified.
func (s *DocValues) Get(field string, docID uint32) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fieldValues, ok := s.values[field]
	if !ok {
		return nil, false
	}
	value, ok := fieldValues[docID]
	return value, ok
}

// Term returns the set of documents whose stored value for the field equals
// value exactly. The returned bitmap is a copy the caller may mutate.
func (s *DocValues) Term(field string, value []byte) *roaring.Bitmap {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fieldPostings, ok := s.postings[field]
	if !ok {
		return roaring.New()
	}
	bitmap, ok := fieldPostings[string(value)]
	if !ok {
		return roaring.New()
	}
	return bitmap.Clone()
}

// Docs returns a copy of the set of all document ids in the store.
func (s *DocValues) Docs() *roaring.Bitmap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs.Clone()
}

// Len returns the number of documents with at least one stored value.
func (s *DocValues) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int(s.docs.GetCardinality())
}
