package quanta

import (
	"errors"
	"fmt"
	"math"
)

const (
	// NumSubQuantizers is the default number of product sub-quantizers (M).
	NumSubQuantizers = 8

	// ProductCentroidCount is the codebook size of every sub-quantizer.
	// 256 codewords let a sub-code fit exactly one unsigned byte.
	ProductCentroidCount = 256
)

var (
	// ErrDimsNotDivisible is returned when dims is not a multiple of the
	// sub-quantizer count.
	ErrDimsNotDivisible = errors.New("dims must be divisible by the number of sub-quantizers")

	// ErrMalformedCodebook is returned when supplied codebooks do not have
	// the shape [M][ProductCentroidCount][dims/M].
	ErrMalformedCodebook = errors.New("malformed product codebook")

	// ErrMalformedCode is returned when a PQ code does not have exactly M
	// bytes.
	ErrMalformedCode = errors.New("product quantization code has unexpected length")
)

// ProductQuantizer compresses vectors of dims dimensions into M bytes.
//
// The vector space is split into M contiguous sub-spaces of dims/M
// dimensions. Each sub-space owns a codebook of ProductCentroidCount learned
// centroids; encoding replaces each sub-vector with the index of its nearest
// codeword. Squared codeword magnitudes are precomputed at construction so
// the asymmetric scorer can build distance tables with one dot product per
// codeword.
//
// A ProductQuantizer is immutable after construction and is shared read-only
// by every query and indexing operation against its field.
type ProductQuantizer struct {
	dims int
	m    int
	dsub int

	// codebooks[m][c] is codeword c of sub-quantizer m, dims/M floats.
	codebooks [][][]float32

	// squaredMagnitudes[m][c] is ||codebooks[m][c]||².
	squaredMagnitudes [][]float32
}

// NewProductQuantizer assembles a quantizer from trained codebooks.
//
// The codebooks must have shape [m][ProductCentroidCount][dims/m]. Use Train
// to learn them, or ReadProductCentroids to load the persisted artifact.
func NewProductQuantizer(dims, m int, codebooks [][][]float32) (*ProductQuantizer, error) {
	if dims < 1 || dims > MaxDims {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDims, dims)
	}
	if m < 1 {
		return nil, fmt.Errorf("number of sub-quantizers must be positive, got %d", m)
	}
	if dims%m != 0 {
		return nil, fmt.Errorf("%w: dims=%d, m=%d", ErrDimsNotDivisible, dims, m)
	}
	dsub := dims / m

	if len(codebooks) != m {
		return nil, fmt.Errorf("%w: have %d codebooks, want %d", ErrMalformedCodebook, len(codebooks), m)
	}
	for mi, codebook := range codebooks {
		if len(codebook) != ProductCentroidCount {
			return nil, fmt.Errorf("%w: sub-quantizer %d has %d codewords, want %d",
				ErrMalformedCodebook, mi, len(codebook), ProductCentroidCount)
		}
		for c, codeword := range codebook {
			if len(codeword) != dsub {
				return nil, fmt.Errorf("%w: sub-quantizer %d codeword %d has %d dims, want %d",
					ErrMalformedCodebook, mi, c, len(codeword), dsub)
			}
		}
	}

	squaredMagnitudes := make([][]float32, m)
	for mi := range codebooks {
		squaredMagnitudes[mi] = make([]float32, ProductCentroidCount)
		for c, codeword := range codebooks[mi] {
			squaredMagnitudes[mi][c] = NormSquared(codeword)
		}
	}

	return &ProductQuantizer{
		dims:              dims,
		m:                 m,
		dsub:              dsub,
		codebooks:         codebooks,
		squaredMagnitudes: squaredMagnitudes,
	}, nil
}

// Dims returns the full vector dimensionality.
func (pq *ProductQuantizer) Dims() int {
	return pq.dims
}

// M returns the number of sub-quantizers, which is also the encoded code
// length in bytes.
func (pq *ProductQuantizer) M() int {
	return pq.m
}

// SubDims returns the dimensionality of each sub-space (dims/M).
func (pq *ProductQuantizer) SubDims() int {
	return pq.dsub
}

// Codeword returns codeword c of sub-quantizer m. The returned slice is
// owned by the quantizer and must not be modified.
func (pq *ProductQuantizer) Codeword(m, c int) []float32 {
	return pq.codebooks[m][c]
}

// Encode compresses a vector into M bytes, one per sub-space.
//
// For each sub-space the nearest of the 256 codewords is found by exhaustive
// scan over squared Euclidean distance; ties keep the lowest codeword index.
// Encoding is deterministic for a fixed codebook.
func (pq *ProductQuantizer) Encode(vector []float32) ([]byte, error) {
	if len(vector) != pq.dims {
		return nil, fmt.Errorf("%w: has %d, quantizer defines %d", dimsMismatchErr(len(vector), pq.dims), len(vector), pq.dims)
	}

	code := make([]byte, pq.m)
	for m := 0; m < pq.m; m++ {
		sub := vector[m*pq.dsub : (m+1)*pq.dsub]

		best := 0
		bestDist := float32(math.Inf(1))
		for c, codeword := range pq.codebooks[m] {
			dist := SquaredDistance(sub, codeword)
			if dist < bestDist {
				best = c
				bestDist = dist
			}
		}
		code[m] = byte(best)
	}
	return code, nil
}

// Decode reconstructs the approximate vector a PQ code stands for by
// concatenating the M referenced codewords. Used for verification; scoring
// never reconstructs, it reads distance tables instead.
func (pq *ProductQuantizer) Decode(code []byte) ([]float32, error) {
	if len(code) != pq.m {
		return nil, fmt.Errorf("%w: has %d bytes, want %d", ErrMalformedCode, len(code), pq.m)
	}

	vector := make([]float32, pq.dims)
	for m, c := range code {
		copy(vector[m*pq.dsub:(m+1)*pq.dsub], pq.codebooks[m][c])
	}
	return vector, nil
}

// dimsMismatchErr picks the direction-specific sentinel for a length check.
func dimsMismatchErr(got, want int) error {
	if got > want {
		return ErrTooManyDimensions
	}
	return ErrTooFewDimensions
}
