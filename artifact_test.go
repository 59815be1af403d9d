package quanta

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestProductCentroidArtifactRoundTrip(t *testing.T) {
	pq, err := NewProductQuantizer(4, 2, testCodebooks(4, 2, [][]float32{{0, 0}, {10, 10}, {-3.5, 7.25}}))
	if err != nil {
		t.Fatalf("NewProductQuantizer() error = %v", err)
	}

	var buf bytes.Buffer
	if err := WriteProductCentroids(&buf, pq); err != nil {
		t.Fatalf("WriteProductCentroids() error = %v", err)
	}

	// M x 256 codewords of dims/M little-endian float32s each.
	wantLen := 2 * ProductCentroidCount * 2 * 4
	if buf.Len() != wantLen {
		t.Errorf("artifact is %d bytes, want %d", buf.Len(), wantLen)
	}

	loaded, err := ReadProductCentroids(&buf, 4, 2)
	if err != nil {
		t.Fatalf("ReadProductCentroids() error = %v", err)
	}
	for mi := 0; mi < 2; mi++ {
		for c := 0; c < ProductCentroidCount; c++ {
			a, b := pq.Codeword(mi, c), loaded.Codeword(mi, c)
			for d := range a {
				if a[d] != b[d] {
					t.Fatalf("codeword [%d][%d] dim %d: %v != %v", mi, c, d, b[d], a[d])
				}
			}
		}
	}
}

func TestReadProductCentroidsErrors(t *testing.T) {
	if _, err := ReadProductCentroids(bytes.NewReader(nil), 4, 3); !errors.Is(err, ErrDimsNotDivisible) {
		t.Errorf("ReadProductCentroids(bad shape) error = %v, want %v", err, ErrDimsNotDivisible)
	}

	// Truncated artifact: a single codeword where 2x256 are declared.
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, []float32{1, 2})
	if _, err := ReadProductCentroids(&buf, 4, 2); err == nil {
		t.Errorf("ReadProductCentroids(truncated) should fail")
	}
}

func TestCoarseCentroidArtifactRoundTrip(t *testing.T) {
	set, err := NewCoarseCentroidSet([][]float32{
		{1.5, -2, 3},
		{0, 0, 0},
		{-7.25, 8, 9.5},
	})
	if err != nil {
		t.Fatalf("NewCoarseCentroidSet() error = %v", err)
	}

	var buf bytes.Buffer
	if err := WriteCoarseCentroids(&buf, set); err != nil {
		t.Fatalf("WriteCoarseCentroids() error = %v", err)
	}

	loaded, err := ReadCoarseCentroids(&buf)
	if err != nil {
		t.Fatalf("ReadCoarseCentroids() error = %v", err)
	}
	if loaded.Len() != set.Len() || loaded.Dims() != set.Dims() {
		t.Fatalf("loaded set is %dx%d, want %dx%d", loaded.Len(), loaded.Dims(), set.Len(), set.Dims())
	}
	for i := 0; i < set.Len(); i++ {
		a, b := set.Centroid(i), loaded.Centroid(i)
		for d := range a {
			if a[d] != b[d] {
				t.Errorf("centroid %d dim %d: %v != %v", i, d, b[d], a[d])
			}
		}
		// Squared magnitudes are recomputed on load from the same floats.
		if set.SquaredMagnitude(i) != loaded.SquaredMagnitude(i) {
			t.Errorf("squared magnitude %d differs after reload", i)
		}
	}
}

// writeCoarseStream hand-crafts a compressed coarse artifact for error-path
// tests.
func writeCoarseStream(t *testing.T, magic []byte, header []uint32) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(magic); err != nil {
		t.Fatalf("write magic: %v", err)
	}
	if err := binary.Write(zw, binary.LittleEndian, header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close stream: %v", err)
	}
	return &buf
}

func TestReadCoarseCentroidsErrors(t *testing.T) {
	if _, err := ReadCoarseCentroids(strings.NewReader("not gzip at all")); err == nil {
		t.Errorf("ReadCoarseCentroids(plain text) should fail")
	}

	badMagic := writeCoarseStream(t, []byte("XXXX"), []uint32{coarseFormatVersion, 1, 2})
	if _, err := ReadCoarseCentroids(badMagic); err == nil || !strings.Contains(err.Error(), "magic") {
		t.Errorf("ReadCoarseCentroids(bad magic) error = %v", err)
	}

	badVersion := writeCoarseStream(t, coarseMagic[:], []uint32{99, 1, 2})
	if _, err := ReadCoarseCentroids(badVersion); err == nil || !strings.Contains(err.Error(), "version") {
		t.Errorf("ReadCoarseCentroids(bad version) error = %v", err)
	}

	empty := writeCoarseStream(t, coarseMagic[:], []uint32{coarseFormatVersion, 0, 2})
	if _, err := ReadCoarseCentroids(empty); !errors.Is(err, ErrEmptyCentroidSet) {
		t.Errorf("ReadCoarseCentroids(zero count) error = %v, want %v", err, ErrEmptyCentroidSet)
	}

	oversized := writeCoarseStream(t, coarseMagic[:], []uint32{coarseFormatVersion, MaxCoarseCentroids + 1, 2})
	if _, err := ReadCoarseCentroids(oversized); !errors.Is(err, ErrTooManyCentroids) {
		t.Errorf("ReadCoarseCentroids(oversized count) error = %v, want %v", err, ErrTooManyCentroids)
	}

	truncated := writeCoarseStream(t, coarseMagic[:], []uint32{coarseFormatVersion, 2, 3})
	if _, err := ReadCoarseCentroids(truncated); err == nil {
		t.Errorf("ReadCoarseCentroids(truncated payload) should fail")
	}
}

// TestTrainedModelArtifactRoundTrip persists a trained model and rebuilds an
// equivalent field type from the artifacts.
func TestTrainedModelArtifactRoundTrip(t *testing.T) {
	vectors := trainingVectors(300)
	model, err := Train(context.Background(), vectors, TrainingConfig{CoarseCentroids: 2, SubQuantizers: 2, Seed: 3})
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	var coarseBuf, pqBuf bytes.Buffer
	if err := WriteCoarseCentroids(&coarseBuf, model.Coarse); err != nil {
		t.Fatalf("WriteCoarseCentroids() error = %v", err)
	}
	if err := WriteProductCentroids(&pqBuf, model.Quantizer); err != nil {
		t.Fatalf("WriteProductCentroids() error = %v", err)
	}

	coarse, err := ReadCoarseCentroids(&coarseBuf)
	if err != nil {
		t.Fatalf("ReadCoarseCentroids() error = %v", err)
	}
	pq, err := ReadProductCentroids(&pqBuf, 4, 2)
	if err != nil {
		t.Fatalf("ReadProductCentroids() error = %v", err)
	}

	field, err := NewVectorFieldType("v", 4, FormatRaw, coarse, pq)
	if err != nil {
		t.Fatalf("NewVectorFieldType() error = %v", err)
	}

	// The reloaded model encodes identically to the in-memory one.
	for _, v := range vectors[:10] {
		wantCode, err := model.Quantizer.Encode(subtract(v, model.Coarse.Centroid(int(model.Coarse.Nearest(v)))))
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		gotCode, err := field.Quantizer().Encode(subtract(v, coarse.Centroid(int(coarse.Nearest(v)))))
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if !bytes.Equal(wantCode, gotCode) {
			t.Errorf("reloaded model encodes %v differently: %v vs %v", v, gotCode, wantCode)
		}
	}
}
