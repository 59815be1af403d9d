package quanta

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// MaxDims is the maximum allowed number of dimensions for a vector field.
const MaxDims = 1024

const (
	float32Bytes = 4
	float16Bytes = 2

	// centroidCodeBytes is the encoded width of a coarse centroid id.
	// Two bytes bound the coarse centroid set to 32768 entries
	// (ids must fit a signed 16-bit code).
	centroidCodeBytes = 2
)

var (
	// ErrTooManyDimensions is returned when a vector exceeds the number of
	// dimensions configured for its field.
	ErrTooManyDimensions = errors.New("vector has more dimensions than defined for the field")

	// ErrTooFewDimensions is returned when a vector has fewer dimensions
	// than configured for its field.
	ErrTooFewDimensions = errors.New("vector has fewer dimensions than defined for the field")

	// ErrInvalidDims is returned when a field is configured with a
	// dimension count outside [1, MaxDims].
	ErrInvalidDims = errors.New("dims must be in the range [1, 1024]")

	// ErrUnknownVectorFormat is returned for an unrecognized VectorFormat.
	ErrUnknownVectorFormat = errors.New("unknown vector format")

	// ErrMalformedValue is returned when a stored binary value does not
	// match the byte length the codec expects.
	ErrMalformedValue = errors.New("stored vector value has unexpected length")
)

// VectorFormat selects the binary layout of a stored vector value.
//
// The format is fixed per field and must match between encode and decode;
// it is the Go analogue of an index-created version gate.
type VectorFormat uint8

const (
	// FormatRaw stores dims big-endian float32 components and nothing else.
	// This is the legacy layout.
	FormatRaw VectorFormat = iota

	// FormatMagnitude stores dims big-endian float32 components followed by
	// one trailing big-endian float32 holding the vector's Euclidean
	// magnitude. The magnitude enables cheap cosine scoring downstream.
	FormatMagnitude

	// FormatHalf stores the components as IEEE 754 half floats (2 bytes
	// each, big-endian) followed by a full-precision big-endian float32
	// magnitude. Halves the component storage; decoding is approximate.
	FormatHalf
)

// VectorCodec encodes and decodes the binary value of a dense vector field.
//
// A codec is bound to a dimension count and a format at construction and is
// immutable afterwards, so a single instance is shared by all writers and
// readers of a field.
type VectorCodec struct {
	dims   int
	format VectorFormat
}

// NewVectorCodec creates a codec for vectors of the given dimensionality.
//
// Returns ErrInvalidDims if dims is outside [1, MaxDims] and
// ErrUnknownVectorFormat for an unrecognized format.
func NewVectorCodec(dims int, format VectorFormat) (*VectorCodec, error) {
	if dims < 1 || dims > MaxDims {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDims, dims)
	}
	switch format {
	case FormatRaw, FormatMagnitude, FormatHalf:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownVectorFormat, format)
	}
	return &VectorCodec{dims: dims, format: format}, nil
}

// Dims returns the configured dimensionality.
func (c *VectorCodec) Dims() int {
	return c.dims
}

// Format returns the configured binary layout.
func (c *VectorCodec) Format() VectorFormat {
	return c.format
}

// EncodedLen returns the exact byte length of an encoded vector value.
func (c *VectorCodec) EncodedLen() int {
	switch c.format {
	case FormatRaw:
		return c.dims * float32Bytes
	case FormatMagnitude:
		return c.dims*float32Bytes + float32Bytes
	default: // FormatHalf
		return c.dims*float16Bytes + float32Bytes
	}
}

// Encode serializes a vector into the field's binary layout.
//
// The vector length must equal the configured dims exactly: both too few
// and too many components are rejected (wrapping ErrTooFewDimensions or
// ErrTooManyDimensions) rather than truncated or padded. These surface at
// document-parse time, per document.
func (c *VectorCodec) Encode(vector []float32) ([]byte, error) {
	if len(vector) > c.dims {
		return nil, fmt.Errorf("%w: has %d, field defines %d", ErrTooManyDimensions, len(vector), c.dims)
	}
	if len(vector) < c.dims {
		return nil, fmt.Errorf("%w: has %d, field defines %d", ErrTooFewDimensions, len(vector), c.dims)
	}

	buf := make([]byte, c.EncodedLen())
	offset := 0
	var squaredSum float32

	switch c.format {
	case FormatHalf:
		for _, v := range vector {
			binary.BigEndian.PutUint16(buf[offset:], float16.Fromfloat32(v).Bits())
			offset += float16Bytes
			squaredSum += v * v
		}
	default:
		for _, v := range vector {
			binary.BigEndian.PutUint32(buf[offset:], math.Float32bits(v))
			offset += float32Bytes
			squaredSum += v * v
		}
	}

	if c.format == FormatMagnitude || c.format == FormatHalf {
		magnitude := float32(math.Sqrt(float64(squaredSum)))
		binary.BigEndian.PutUint32(buf[offset:], math.Float32bits(magnitude))
	}

	return buf, nil
}

// Decode deserializes the component payload of an encoded vector value.
//
// For the float32 formats this is the exact inverse of Encode. For
// FormatHalf the components are widened back to float32 and the result is
// approximate by construction. The trailing magnitude, when present, is not
// part of the returned vector; use Magnitude to read it.
func (c *VectorCodec) Decode(buf []byte) ([]float32, error) {
	if len(buf) != c.EncodedLen() {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedValue, len(buf), c.EncodedLen())
	}

	vector := make([]float32, c.dims)
	offset := 0
	switch c.format {
	case FormatHalf:
		for i := range vector {
			vector[i] = float16.Frombits(binary.BigEndian.Uint16(buf[offset:])).Float32()
			offset += float16Bytes
		}
	default:
		for i := range vector {
			vector[i] = math.Float32frombits(binary.BigEndian.Uint32(buf[offset:]))
			offset += float32Bytes
		}
	}
	return vector, nil
}

// Magnitude reads the trailing Euclidean magnitude of an encoded value.
//
// Only FormatMagnitude and FormatHalf carry a stored magnitude; for
// FormatRaw an error is returned since the layout has no trailing float.
func (c *VectorCodec) Magnitude(buf []byte) (float32, error) {
	if c.format == FormatRaw {
		return 0, fmt.Errorf("%w: format carries no magnitude", ErrUnknownVectorFormat)
	}
	if len(buf) != c.EncodedLen() {
		return 0, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedValue, len(buf), c.EncodedLen())
	}
	return math.Float32frombits(binary.BigEndian.Uint32(buf[len(buf)-float32Bytes:])), nil
}

// EncodeCentroidID encodes a coarse centroid id as a 2-byte big-endian code.
func EncodeCentroidID(id uint16) []byte {
	code := make([]byte, centroidCodeBytes)
	binary.BigEndian.PutUint16(code, id)
	return code
}

// DecodeCentroidID decodes the 2-byte big-endian coarse centroid code.
func DecodeCentroidID(code []byte) (uint16, error) {
	if len(code) != centroidCodeBytes {
		return 0, fmt.Errorf("%w: centroid code has %d bytes, want %d", ErrMalformedValue, len(code), centroidCodeBytes)
	}
	return binary.BigEndian.Uint16(code), nil
}
