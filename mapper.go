package quanta

import (
	"fmt"
)

// VectorFieldMapper is the index-time path of a dense vector field.
//
// For each document it writes three independent binary values into the
// store, keyed by field-derived names:
//
//  1. the encoded vector bytes (format-dependent, see VectorCodec)
//  2. the 2-byte big-endian code of the nearest coarse centroid
//  3. the M-byte product quantization code of the residual
//     (vector minus assigned coarse centroid)
//
// All three are written once per document and are immutable afterwards;
// indexing the same document into the same vector field twice is a hard
// error, never a silent overwrite. Encoding touches a single document's
// data and needs no cross-document coordination.
type VectorFieldMapper struct {
	fieldType *VectorFieldType
	store     *DocValues
}

// NewVectorFieldMapper binds a field type to a doc-value store.
func NewVectorFieldMapper(fieldType *VectorFieldType, store *DocValues) *VectorFieldMapper {
	return &VectorFieldMapper{fieldType: fieldType, store: store}
}

// Index encodes and stores a document's vector field.
//
// Fails with an encoding error when the vector length does not match the
// field's dims (wrapping ErrTooFewDimensions or ErrTooManyDimensions) or
// when the document already has a value for the field (ErrDuplicateValue).
// Errors are per-document: a failed document leaves the store unchanged
// for that document and does not affect others.
func (m *VectorFieldMapper) Index(docID uint32, vector []float32) error {
	fieldType := m.fieldType

	encoded, err := fieldType.Codec().Encode(vector)
	if err != nil {
		return fmt.Errorf("field [%s], doc %d: %w", fieldType.Name(), docID, err)
	}

	centroidID := fieldType.CoarseCentroids().Nearest(vector)
	residual := subtract(vector, fieldType.CoarseCentroids().Centroid(int(centroidID)))

	code, err := fieldType.Quantizer().Encode(residual)
	if err != nil {
		return fmt.Errorf("field [%s], doc %d: %w", fieldType.Name(), docID, err)
	}

	// The raw vector value is written first; it is the duplicate guard for
	// the whole field. The companion values below can only be absent when
	// it is absent, so they cannot individually collide.
	if err := m.store.Put(fieldType.VectorValueName(), docID, encoded); err != nil {
		return fmt.Errorf("field [%s]: %w", fieldType.Name(), err)
	}
	if err := m.store.Put(fieldType.CentroidValueName(), docID, EncodeCentroidID(centroidID)); err != nil {
		return fmt.Errorf("field [%s]: %w", fieldType.Name(), err)
	}
	if err := m.store.Put(fieldType.ProductCodeValueName(), docID, code); err != nil {
		return fmt.Errorf("field [%s]: %w", fieldType.Name(), err)
	}
	return nil
}
