package tensor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidShape   = errors.New("invalid shape")
	ErrBufferSize     = errors.New("buffer size does not match shape and data type")
	ErrDataTypeAccess = errors.New("tensor data type does not match accessor")
)

// Tensor is an immutable view over a little-endian byte buffer. Several
// tensors may share one backing buffer at different offsets.
type Tensor struct {
	dtype  DataType
	shape  Shape
	buf    []byte
	offset int
}

// New creates a tensor that owns a copy of data.
func New(dtype DataType, shape Shape, data []byte) (*Tensor, error) {
	t, err := NewView(dtype, shape, data, 0)
	if err != nil {
		return nil, err
	}
	owned := make([]byte, t.ByteSize())
	copy(owned, t.Bytes())
	t.buf = owned

	return t, nil
}

// NewView creates a tensor over buf starting at offset without copying.
// buf may be larger than the tensor; bytes outside the view are never exposed.
func NewView(dtype DataType, shape Shape, buf []byte, offset int) (*Tensor, error) {
	if dtype.Size() == 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDataType, dtype)
	}
	if err := shape.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidShape, err)
	}
	size := shape.NumElements() * dtype.Size()
	if offset < 0 || size > len(buf)-offset {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrBufferSize, size, offset, len(buf))
	}

	return &Tensor{
		dtype:  dtype,
		shape:  shape.Clone(),
		buf:    buf,
		offset: offset,
	}, nil
}

// FromFloat32 creates a float32 tensor.
func FromFloat32(values []float32, shape Shape) (*Tensor, error) {
	if err := checkCount(len(values), shape); err != nil {
		return nil, err
	}
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}

	return NewView(Float32, shape, buf, 0)
}

// FromInt32 creates an int32 tensor.
func FromInt32(values []int32, shape Shape) (*Tensor, error) {
	if err := checkCount(len(values), shape); err != nil {
		return nil, err
	}
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}

	return NewView(Int32, shape, buf, 0)
}

// FromBool creates a bool tensor stored as one byte per element.
func FromBool(values []bool, shape Shape) (*Tensor, error) {
	if err := checkCount(len(values), shape); err != nil {
		return nil, err
	}
	buf := make([]byte, len(values))
	for i, v := range values {
		if v {
			buf[i] = 1
		}
	}

	return NewView(Bool, shape, buf, 0)
}

// FromFloat64 creates a float64 tensor.
func FromFloat64(values []float64, shape Shape) (*Tensor, error) {
	if err := checkCount(len(values), shape); err != nil {
		return nil, err
	}
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}

	return NewView(Float64, shape, buf, 0)
}

// FromValues converts generic numeric values into a tensor of the given type.
// int32 values are rounded to the nearest integer and bool values are true when non-zero.
func FromValues(dtype DataType, values []float64, shape Shape) (*Tensor, error) {
	switch dtype {
	case Float32:
		out := make([]float32, len(values))
		for i, v := range values {
			out[i] = float32(v)
		}

		return FromFloat32(out, shape)
	case Int32:
		out := make([]int32, len(values))
		for i, v := range values {
			out[i] = int32(math.Round(v))
		}

		return FromInt32(out, shape)
	case Bool:
		out := make([]bool, len(values))
		for i, v := range values {
			out[i] = v != 0
		}

		return FromBool(out, shape)
	case Float64:
		return FromFloat64(values, shape)
	case Int64:
		if err := checkCount(len(values), shape); err != nil {
			return nil, err
		}
		buf := make([]byte, len(values)*8)
		for i, v := range values {
			binary.LittleEndian.PutUint64(buf[i*8:], uint64(int64(math.Round(v))))
		}

		return NewView(Int64, shape, buf, 0)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownDataType, dtype)
	}
}

// DType returns the tensor's data type.
func (t *Tensor) DType() DataType {
	return t.dtype
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape.Clone()
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return t.shape.NumElements()
}

// ByteSize returns the size of the tensor's data in bytes.
func (t *Tensor) ByteSize() int {
	return t.NumElements() * t.dtype.Size()
}

// Bytes returns the tensor's own bytes, sliced tightly out of the backing buffer.
// The returned slice aliases the tensor and must not be modified.
func (t *Tensor) Bytes() []byte {
	end := t.offset + t.ByteSize()

	return t.buf[t.offset:end:end]
}

// Float32s returns a copy of the contents of a float32 tensor.
func (t *Tensor) Float32s() ([]float32, error) {
	if t.dtype != Float32 {
		return nil, fmt.Errorf("%w: have %s, want float32", ErrDataTypeAccess, t.dtype)
	}
	data := t.Bytes()
	out := make([]float32, t.NumElements())
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}

	return out, nil
}

// Int32s returns a copy of the contents of an int32 tensor.
func (t *Tensor) Int32s() ([]int32, error) {
	if t.dtype != Int32 {
		return nil, fmt.Errorf("%w: have %s, want int32", ErrDataTypeAccess, t.dtype)
	}
	data := t.Bytes()
	out := make([]int32, t.NumElements())
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
	}

	return out, nil
}

// Bools returns a copy of the contents of a bool tensor.
func (t *Tensor) Bools() ([]bool, error) {
	if t.dtype != Bool {
		return nil, fmt.Errorf("%w: have %s, want bool", ErrDataTypeAccess, t.dtype)
	}
	data := t.Bytes()
	out := make([]bool, len(data))
	for i, b := range data {
		out[i] = b != 0
	}

	return out, nil
}

// Values returns the flat contents as float64, whatever the data type.
// Every float32 and int32 value is represented exactly.
func (t *Tensor) Values() []float64 {
	data := t.Bytes()
	out := make([]float64, t.NumElements())
	for i := range out {
		switch t.dtype {
		case Float32:
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
		case Int32:
			out[i] = float64(int32(binary.LittleEndian.Uint32(data[i*4:])))
		case Bool:
			if data[i] != 0 {
				out[i] = 1
			}
		case Float64:
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		case Int64:
			out[i] = float64(int64(binary.LittleEndian.Uint64(data[i*8:])))
		}
	}

	return out
}

// SameLayout reports whether two tensors have the same data type and shape.
func (t *Tensor) SameLayout(other *Tensor) bool {
	return other != nil && t.dtype == other.dtype && t.shape.Equal(other.shape)
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(%s, %v)", t.dtype, []int(t.shape))
}

func checkCount(n int, shape Shape) error {
	if err := shape.Validate(); err != nil {
		return errors.Join(ErrInvalidShape, err)
	}
	if n != shape.NumElements() {
		return fmt.Errorf("%w: %d values for shape %v", ErrInvalidShape, n, []int(shape))
	}

	return nil
}
