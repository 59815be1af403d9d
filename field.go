package quanta

import (
	"errors"
	"fmt"
	"math"
)

// MaxCoarseCentroids bounds the coarse centroid set so every centroid id
// fits the 2-byte code produced by EncodeCentroidID.
const MaxCoarseCentroids = 32768

const (
	centroidFieldSuffix    = ".centroid"
	productCodeFieldSuffix = ".product_centroids"
)

var (
	// ErrTooManyCentroids is returned when a coarse centroid set exceeds
	// MaxCoarseCentroids entries.
	ErrTooManyCentroids = errors.New("coarse centroid set exceeds the maximum size")

	// ErrEmptyCentroidSet is returned for a coarse centroid set with no
	// entries.
	ErrEmptyCentroidSet = errors.New("coarse centroid set is empty")

	// ErrNotVectorField is returned when a query targets a field that is
	// not a dense vector field.
	ErrNotVectorField = errors.New("field is not of the dense_vector type")

	// ErrUnknownField is returned when a schema lookup finds no field.
	ErrUnknownField = errors.New("unknown field")

	// ErrDuplicateField is returned when a field name is registered twice.
	ErrDuplicateField = errors.New("field already defined in schema")
)

// CoarseCentroidSet holds the trained coarse centroids of a vector field
// together with their precomputed squared magnitudes.
//
// The set is produced once by k-means over a representative sample, is
// immutable afterwards, and is shared read-only by every query against the
// field. Its lifetime is the lifetime of the field type that owns it.
type CoarseCentroidSet struct {
	centroids         [][]float32
	squaredMagnitudes []float32
}

// NewCoarseCentroidSet wraps trained centroids, precomputing ||c||² for the
// probe selector. All centroids must share one dimensionality and the set
// must hold between 1 and MaxCoarseCentroids entries.
func NewCoarseCentroidSet(centroids [][]float32) (*CoarseCentroidSet, error) {
	if len(centroids) == 0 {
		return nil, ErrEmptyCentroidSet
	}
	if len(centroids) > MaxCoarseCentroids {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyCentroids, len(centroids), MaxCoarseCentroids)
	}

	dims := len(centroids[0])
	if dims < 1 || dims > MaxDims {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDims, dims)
	}

	squaredMagnitudes := make([]float32, len(centroids))
	for i, centroid := range centroids {
		if len(centroid) != dims {
			return nil, fmt.Errorf("centroid %d has %d dims, want %d", i, len(centroid), dims)
		}
		squaredMagnitudes[i] = NormSquared(centroid)
	}

	return &CoarseCentroidSet{
		centroids:         centroids,
		squaredMagnitudes: squaredMagnitudes,
	}, nil
}

// Len returns the number of coarse centroids.
func (s *CoarseCentroidSet) Len() int {
	return len(s.centroids)
}

// Dims returns the dimensionality of the centroids.
func (s *CoarseCentroidSet) Dims() int {
	return len(s.centroids[0])
}

// Centroid returns centroid i. The returned slice is owned by the set and
// must not be modified.
func (s *CoarseCentroidSet) Centroid(i int) []float32 {
	return s.centroids[i]
}

// SquaredMagnitude returns ||centroid i||².
func (s *CoarseCentroidSet) SquaredMagnitude(i int) float32 {
	return s.squaredMagnitudes[i]
}

// Nearest returns the id of the centroid closest to the vector by squared
// Euclidean distance. Used at index time to assign a document's partition.
func (s *CoarseCentroidSet) Nearest(vector []float32) uint16 {
	best := 0
	bestDist := float32(math.Inf(1))
	for i, centroid := range s.centroids {
		dist := SquaredDistance(vector, centroid)
		if dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	return uint16(best)
}

// FieldType is the minimal surface a schema entry exposes. Lookups that
// need a concrete field type assert on the implementation.
type FieldType interface {
	// Name returns the field's name.
	Name() string

	// TypeName returns the mapping type of the field, e.g. "dense_vector".
	TypeName() string
}

// VectorFieldType is the configuration and trained model of one dense
// vector field: its dimensionality, binary format, coarse centroid set and
// product quantizer. Loaded once, shared read-only.
type VectorFieldType struct {
	name   string
	codec  *VectorCodec
	coarse *CoarseCentroidSet
	pq     *ProductQuantizer
}

// VectorFieldTypeName is the mapping type name of dense vector fields.
const VectorFieldTypeName = "dense_vector"

// NewVectorFieldType builds a vector field type.
//
// dims must be in [1, MaxDims], divisible by the quantizer's M, and agree
// with both the coarse centroid set and the quantizer. All checks happen
// here, eagerly, so per-document and per-query code never re-validates the
// model shape.
func NewVectorFieldType(name string, dims int, format VectorFormat, coarse *CoarseCentroidSet, pq *ProductQuantizer) (*VectorFieldType, error) {
	codec, err := NewVectorCodec(dims, format)
	if err != nil {
		return nil, fmt.Errorf("field [%s]: %w", name, err)
	}
	if coarse == nil || pq == nil {
		return nil, fmt.Errorf("field [%s]: coarse centroids and product quantizer are required", name)
	}
	if coarse.Dims() != dims {
		return nil, fmt.Errorf("field [%s]: coarse centroids have %d dims, field defines %d", name, coarse.Dims(), dims)
	}
	if pq.Dims() != dims {
		return nil, fmt.Errorf("field [%s]: product quantizer covers %d dims, field defines %d", name, pq.Dims(), dims)
	}
	return &VectorFieldType{
		name:   name,
		codec:  codec,
		coarse: coarse,
		pq:     pq,
	}, nil
}

// Name returns the field name.
func (f *VectorFieldType) Name() string {
	return f.name
}

// TypeName returns "dense_vector".
func (f *VectorFieldType) TypeName() string {
	return VectorFieldTypeName
}

// Dims returns the configured dimensionality.
func (f *VectorFieldType) Dims() int {
	return f.codec.Dims()
}

// Codec returns the field's vector codec.
func (f *VectorFieldType) Codec() *VectorCodec {
	return f.codec
}

// CoarseCentroids returns the field's trained coarse centroid set.
func (f *VectorFieldType) CoarseCentroids() *CoarseCentroidSet {
	return f.coarse
}

// Quantizer returns the field's trained product quantizer.
func (f *VectorFieldType) Quantizer() *ProductQuantizer {
	return f.pq
}

// VectorValueName is the doc-value name storing the raw vector bytes.
func (f *VectorFieldType) VectorValueName() string {
	return f.name
}

// CentroidValueName is the doc-value name storing the 2-byte coarse
// centroid code.
func (f *VectorFieldType) CentroidValueName() string {
	return f.name + centroidFieldSuffix
}

// ProductCodeValueName is the doc-value name storing the M-byte PQ code.
func (f *VectorFieldType) ProductCodeValueName() string {
	return f.name + productCodeFieldSuffix
}

// KeywordFieldType is a plain non-vector field. It exists so schemas can
// hold fields of several types and vector queries can reject the wrong one.
type KeywordFieldType struct {
	name string
}

// NewKeywordFieldType creates a keyword field.
func NewKeywordFieldType(name string) *KeywordFieldType {
	return &KeywordFieldType{name: name}
}

// Name returns the field name.
func (f *KeywordFieldType) Name() string {
	return f.name
}

// TypeName returns "keyword".
func (f *KeywordFieldType) TypeName() string {
	return "keyword"
}

// Schema is a registry of field types, resolved by name at query and index
// time. Fields are registered up front; lookups are read-only afterwards.
type Schema struct {
	fields map[string]FieldType
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{fields: make(map[string]FieldType)}
}

// AddField registers a field type. Registering the same name twice is an
// error.
func (s *Schema) AddField(field FieldType) error {
	if _, ok := s.fields[field.Name()]; ok {
		return fmt.Errorf("%w: [%s]", ErrDuplicateField, field.Name())
	}
	s.fields[field.Name()] = field
	return nil
}

// Field resolves a field type by name.
func (s *Schema) Field(name string) (FieldType, bool) {
	field, ok := s.fields[name]
	return field, ok
}

// VectorField resolves a field by name and requires it to be a dense vector
// field. A missing field or a field of another type is a configuration
// error raised at query-construction time.
func (s *Schema) VectorField(name string) (*VectorFieldType, error) {
	field, ok := s.fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: [%s]", ErrUnknownField, name)
	}
	vectorField, ok := field.(*VectorFieldType)
	if !ok {
		return nil, fmt.Errorf("%w: [%s] is of type [%s], expected [%s]",
			ErrNotVectorField, name, field.TypeName(), VectorFieldTypeName)
	}
	return vectorField, nil
}
