package quanta

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// The trained-model artifacts below are the canonical persisted forms of a
// field's model. The product codebook artifact is a headerless block of
// M x 256 x (dims/M) little-endian float32s (one contiguous block per
// sub-quantizer per codeword) so it can be produced by any offline trainer;
// its shape is implied by the field configuration. The coarse centroid
// artifact is self-describing and gzip-compressed.

// coarseMagic identifies a serialized coarse centroid set.
var coarseMagic = [4]byte{'Q', 'C', 'C', 'S'}

// coarseFormatVersion is the current coarse artifact version.
const coarseFormatVersion = uint32(1)

// WriteProductCentroids writes the product codebook artifact: for each
// sub-quantizer in order, for each of its 256 codewords in order, dims/M
// little-endian float32 components.
func WriteProductCentroids(w io.Writer, pq *ProductQuantizer) error {
	for mi := 0; mi < pq.M(); mi++ {
		for c := 0; c < ProductCentroidCount; c++ {
			if err := binary.Write(w, binary.LittleEndian, pq.Codeword(mi, c)); err != nil {
				return fmt.Errorf("failed to write codeword %d of sub-quantizer %d: %w", c, mi, err)
			}
		}
	}
	return nil
}

// ReadProductCentroids reads the product codebook artifact back into a
// ProductQuantizer. The artifact carries no header, so dims and m must come
// from the field configuration and must match the values used at write
// time; a short read is a data error.
func ReadProductCentroids(r io.Reader, dims, m int) (*ProductQuantizer, error) {
	if m < 1 || dims < 1 || dims%m != 0 {
		return nil, fmt.Errorf("%w: dims=%d, m=%d", ErrDimsNotDivisible, dims, m)
	}
	dsub := dims / m

	codebooks := make([][][]float32, m)
	for mi := 0; mi < m; mi++ {
		codebooks[mi] = make([][]float32, ProductCentroidCount)
		for c := 0; c < ProductCentroidCount; c++ {
			codeword := make([]float32, dsub)
			if err := binary.Read(r, binary.LittleEndian, codeword); err != nil {
				return nil, fmt.Errorf("failed to read codeword %d of sub-quantizer %d: %w", c, mi, err)
			}
			codebooks[mi][c] = codeword
		}
	}
	return NewProductQuantizer(dims, m, codebooks)
}

// WriteCoarseCentroids serializes a coarse centroid set.
//
// The stream is gzip-compressed and contains, little-endian:
//
//	magic "QCCS" (4 bytes)
//	version (uint32)
//	centroid count (uint32)
//	dims (uint32)
//	count x dims float32 components
//
// Squared magnitudes are not persisted; they are recomputed on load.
func WriteCoarseCentroids(w io.Writer, set *CoarseCentroidSet) error {
	zw := gzip.NewWriter(w)

	if _, err := zw.Write(coarseMagic[:]); err != nil {
		return fmt.Errorf("failed to write magic: %w", err)
	}
	header := []uint32{coarseFormatVersion, uint32(set.Len()), uint32(set.Dims())}
	if err := binary.Write(zw, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := 0; i < set.Len(); i++ {
		if err := binary.Write(zw, binary.LittleEndian, set.Centroid(i)); err != nil {
			return fmt.Errorf("failed to write centroid %d: %w", i, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish compressed stream: %w", err)
	}
	return nil
}

// ReadCoarseCentroids deserializes a coarse centroid set written by
// WriteCoarseCentroids.
func ReadCoarseCentroids(r io.Reader) (*CoarseCentroidSet, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open compressed stream: %w", err)
	}
	defer zr.Close()

	var magic [4]byte
	if _, err := io.ReadFull(zr, magic[:]); err != nil {
		return nil, fmt.Errorf("failed to read magic: %w", err)
	}
	if magic != coarseMagic {
		return nil, fmt.Errorf("invalid magic: expected %q, got %q", coarseMagic[:], magic[:])
	}

	header := make([]uint32, 3)
	if err := binary.Read(zr, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	version, count, dims := header[0], header[1], header[2]
	if version != coarseFormatVersion {
		return nil, fmt.Errorf("unsupported coarse artifact version: %d", version)
	}
	if count == 0 {
		return nil, ErrEmptyCentroidSet
	}
	if count > MaxCoarseCentroids {
		return nil, fmt.Errorf("%w: artifact declares %d centroids", ErrTooManyCentroids, count)
	}
	if dims == 0 || dims > MaxDims {
		return nil, fmt.Errorf("%w: artifact declares %d", ErrInvalidDims, dims)
	}

	centroids := make([][]float32, count)
	for i := range centroids {
		centroid := make([]float32, dims)
		if err := binary.Read(zr, binary.LittleEndian, centroid); err != nil {
			return nil, fmt.Errorf("failed to read centroid %d: %w", i, err)
		}
		centroids[i] = centroid
	}
	return NewCoarseCentroidSet(centroids)
}
