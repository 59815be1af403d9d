package quanta

import (
	"errors"
	"testing"
)

// testVectorFieldType assembles a valid 4-dim field type with two coarse
// centroids and a 2-byte product quantizer.
func testVectorFieldType(t *testing.T, name string) *VectorFieldType {
	t.Helper()

	coarse, err := NewCoarseCentroidSet([][]float32{
		{0, 0, 0, 0},
		{100, 100, 100, 100},
	})
	if err != nil {
		t.Fatalf("NewCoarseCentroidSet() error = %v", err)
	}

	pq, err := NewProductQuantizer(4, 2, testCodebooks(4, 2, [][]float32{{0, 0}, {10, 10}}))
	if err != nil {
		t.Fatalf("NewProductQuantizer() error = %v", err)
	}

	field, err := NewVectorFieldType(name, 4, FormatRaw, coarse, pq)
	if err != nil {
		t.Fatalf("NewVectorFieldType() error = %v", err)
	}
	return field
}

func TestCoarseCentroidSetValidation(t *testing.T) {
	if _, err := NewCoarseCentroidSet(nil); !errors.Is(err, ErrEmptyCentroidSet) {
		t.Errorf("NewCoarseCentroidSet(nil) error = %v, want %v", err, ErrEmptyCentroidSet)
	}

	tooMany := make([][]float32, MaxCoarseCentroids+1)
	for i := range tooMany {
		tooMany[i] = []float32{1}
	}
	if _, err := NewCoarseCentroidSet(tooMany); !errors.Is(err, ErrTooManyCentroids) {
		t.Errorf("NewCoarseCentroidSet(oversized) error = %v, want %v", err, ErrTooManyCentroids)
	}

	if _, err := NewCoarseCentroidSet([][]float32{{1, 2}, {3}}); err == nil {
		t.Errorf("NewCoarseCentroidSet(ragged) should fail")
	}
}

func TestCoarseCentroidSetNearest(t *testing.T) {
	set, err := NewCoarseCentroidSet([][]float32{
		{0, 0},
		{10, 0},
		{0, 10},
	})
	if err != nil {
		t.Fatalf("NewCoarseCentroidSet() error = %v", err)
	}

	tests := []struct {
		vector []float32
		want   uint16
	}{
		{[]float32{1, 1}, 0},
		{[]float32{9, -1}, 1},
		{[]float32{-1, 12}, 2},
		{[]float32{5, 0}, 0}, // exact tie with centroid 1, lowest id wins
	}

	for _, tt := range tests {
		if got := set.Nearest(tt.vector); got != tt.want {
			t.Errorf("Nearest(%v) = %d, want %d", tt.vector, got, tt.want)
		}
	}

	if set.SquaredMagnitude(1) != 100 {
		t.Errorf("SquaredMagnitude(1) = %v, want 100", set.SquaredMagnitude(1))
	}
}

func TestNewVectorFieldTypeValidation(t *testing.T) {
	coarse, _ := NewCoarseCentroidSet([][]float32{{0, 0, 0, 0}})
	narrowCoarse, _ := NewCoarseCentroidSet([][]float32{{0, 0}})
	pq, _ := NewProductQuantizer(4, 2, testCodebooks(4, 2, [][]float32{{0, 0}}))

	if _, err := NewVectorFieldType("v", 4, FormatRaw, nil, pq); err == nil {
		t.Errorf("NewVectorFieldType(nil coarse) should fail")
	}
	if _, err := NewVectorFieldType("v", 4, FormatRaw, coarse, nil); err == nil {
		t.Errorf("NewVectorFieldType(nil quantizer) should fail")
	}
	if _, err := NewVectorFieldType("v", 4, FormatRaw, narrowCoarse, pq); err == nil {
		t.Errorf("NewVectorFieldType(coarse dims mismatch) should fail")
	}
	if _, err := NewVectorFieldType("v", 0, FormatRaw, coarse, pq); !errors.Is(err, ErrInvalidDims) {
		t.Errorf("NewVectorFieldType(dims=0) error = %v, want %v", err, ErrInvalidDims)
	}
}

func TestVectorFieldValueNames(t *testing.T) {
	field := testVectorFieldType(t, "embedding")

	if got := field.VectorValueName(); got != "embedding" {
		t.Errorf("VectorValueName() = %q", got)
	}
	if got := field.CentroidValueName(); got != "embedding.centroid" {
		t.Errorf("CentroidValueName() = %q", got)
	}
	if got := field.ProductCodeValueName(); got != "embedding.product_centroids" {
		t.Errorf("ProductCodeValueName() = %q", got)
	}
}

func TestSchemaLookup(t *testing.T) {
	schema := NewSchema()
	vector := testVectorFieldType(t, "embedding")

	if err := schema.AddField(vector); err != nil {
		t.Fatalf("AddField() error = %v", err)
	}
	if err := schema.AddField(NewKeywordFieldType("title")); err != nil {
		t.Fatalf("AddField() error = %v", err)
	}
	if err := schema.AddField(NewKeywordFieldType("embedding")); !errors.Is(err, ErrDuplicateField) {
		t.Errorf("AddField(duplicate) error = %v, want %v", err, ErrDuplicateField)
	}

	got, err := schema.VectorField("embedding")
	if err != nil {
		t.Fatalf("VectorField() error = %v", err)
	}
	if got != vector {
		t.Errorf("VectorField() returned a different field type")
	}

	if _, err := schema.VectorField("title"); !errors.Is(err, ErrNotVectorField) {
		t.Errorf("VectorField(keyword) error = %v, want %v", err, ErrNotVectorField)
	}
	if _, err := schema.VectorField("missing"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("VectorField(missing) error = %v, want %v", err, ErrUnknownField)
	}
}
