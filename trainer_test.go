package quanta

import (
	"context"
	"errors"
	"testing"
)

// trainingVectors builds a 4-dim training set of two separated blobs, large
// enough to learn 256-codeword codebooks.
func trainingVectors(n int) [][]float32 {
	centers := [][]float32{
		{0, 0, 0, 0},
		{100, 100, 100, 100},
	}
	return blobVectors(centers, n/2)
}

func TestTrainValidation(t *testing.T) {
	vectors := trainingVectors(300)

	tests := []struct {
		name    string
		vectors [][]float32
		cfg     TrainingConfig
		wantErr error
	}{
		{"no vectors", nil, TrainingConfig{CoarseCentroids: 2}, ErrNoTrainingVectors},
		{"too few vectors", vectors[:100], TrainingConfig{CoarseCentroids: 2, SubQuantizers: 2}, ErrInsufficientTrainingData},
		{"dims not divisible", vectors, TrainingConfig{CoarseCentroids: 2, SubQuantizers: 3}, ErrDimsNotDivisible},
		{"coarse count zero", vectors, TrainingConfig{CoarseCentroids: 0, SubQuantizers: 2}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Train(context.Background(), tt.vectors, tt.cfg)
			if err == nil {
				t.Fatalf("Train() should fail")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Train() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	ragged := trainingVectors(300)
	ragged[10] = []float32{1, 2}
	if _, err := Train(context.Background(), ragged, TrainingConfig{CoarseCentroids: 2, SubQuantizers: 2}); err == nil {
		t.Errorf("Train(ragged input) should fail")
	}
}

func TestTrainProducesValidModel(t *testing.T) {
	vectors := trainingVectors(300)

	model, err := Train(context.Background(), vectors, TrainingConfig{
		CoarseCentroids: 2,
		SubQuantizers:   2,
		Seed:            11,
	})
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	if model.Coarse.Len() != 2 || model.Coarse.Dims() != 4 {
		t.Errorf("coarse set is %dx%d, want 2x4", model.Coarse.Len(), model.Coarse.Dims())
	}
	if model.Quantizer.Dims() != 4 || model.Quantizer.M() != 2 || model.Quantizer.SubDims() != 2 {
		t.Errorf("quantizer geometry = (%d, %d, %d), want (4, 2, 2)",
			model.Quantizer.Dims(), model.Quantizer.M(), model.Quantizer.SubDims())
	}

	// The model must plug straight into a field type.
	if _, err := NewVectorFieldType("v", 4, FormatRaw, model.Coarse, model.Quantizer); err != nil {
		t.Errorf("NewVectorFieldType() rejected the trained model: %v", err)
	}

	// Every training vector must encode without error.
	field, _ := NewVectorFieldType("v", 4, FormatRaw, model.Coarse, model.Quantizer)
	store := NewDocValues()
	mapper := NewVectorFieldMapper(field, store)
	for i, v := range vectors[:20] {
		if err := mapper.Index(uint32(i), v); err != nil {
			t.Fatalf("Index(%d) error = %v", i, err)
		}
	}
}

// TestTrainDeterministic tests that identical seeds reproduce the exact same
// model despite the parallel codebook training.
func TestTrainDeterministic(t *testing.T) {
	vectors := trainingVectors(300)
	cfg := TrainingConfig{CoarseCentroids: 2, SubQuantizers: 2, Seed: 42}

	first, err := Train(context.Background(), vectors, cfg)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	second, err := Train(context.Background(), vectors, cfg)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	for i := 0; i < first.Coarse.Len(); i++ {
		a, b := first.Coarse.Centroid(i), second.Coarse.Centroid(i)
		for d := range a {
			if a[d] != b[d] {
				t.Fatalf("coarse centroid %d dim %d differs across runs", i, d)
			}
		}
	}
	for mi := 0; mi < first.Quantizer.M(); mi++ {
		for c := 0; c < ProductCentroidCount; c++ {
			a, b := first.Quantizer.Codeword(mi, c), second.Quantizer.Codeword(mi, c)
			for d := range a {
				if a[d] != b[d] {
					t.Fatalf("codeword [%d][%d] dim %d differs across runs", mi, c, d)
				}
			}
		}
	}
}

// TestTrainAccelerated tests that the accelerated clustering path yields a
// usable model too.
func TestTrainAccelerated(t *testing.T) {
	vectors := trainingVectors(300)

	model, err := Train(context.Background(), vectors, TrainingConfig{
		CoarseCentroids: 2,
		SubQuantizers:   2,
		Accelerated:     true,
		Seed:            5,
	})
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if model.Coarse.Len() != 2 || model.Quantizer.M() != 2 {
		t.Errorf("accelerated training produced a malformed model")
	}
}

// TestTrainCancelledContext tests that a cancelled context aborts the
// codebook stage.
func TestTrainCancelledContext(t *testing.T) {
	vectors := trainingVectors(300)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Train(ctx, vectors, TrainingConfig{CoarseCentroids: 2, SubQuantizers: 2}); !errors.Is(err, context.Canceled) {
		t.Errorf("Train(cancelled ctx) error = %v, want %v", err, context.Canceled)
	}
}
