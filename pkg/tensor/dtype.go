// Package tensor provides the minimal typed-buffer tensor used to hold model
// weights and telemetry samples. Data is kept as little-endian bytes so it can
// be handed to the wire codec without conversion.
package tensor

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrUnknownDataType is returned when parsing a data type name fails.
	ErrUnknownDataType = errors.New("unknown data type")
	ErrShapeOverflow   = errors.New("shape size overflows int")
)

// maxElementSize is the widest element of any DataType.
const maxElementSize = 8

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Int32
	Bool
	Float64
	Int64
)

// Size returns the byte size of a single element.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Bool:
		return 1
	default:
		return 0
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Int32:
		return "int32"
	case Bool:
		return "bool"
	case Float64:
		return "float64"
	case Int64:
		return "int64"
	default:
		return "unknown"
	}
}

// ParseDataType maps a data type name to its DataType.
func ParseDataType(name string) (DataType, error) {
	switch name {
	case "float32":
		return Float32, nil
	case "int32":
		return Int32, nil
	case "bool":
		return Bool, nil
	case "float64":
		return Float64, nil
	case "int64":
		return Int64, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDataType, name)
	}
}

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements. A scalar has one element.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}

	return n
}

// Validate checks that all dimensions are positive and that the byte size of
// the shape fits in an int for every DataType.
func (s Shape) Validate() error {
	n := 1
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
		if n > math.MaxInt/maxElementSize/dim {
			return fmt.Errorf("%w: %v", ErrShapeOverflow, []int(s))
		}
		n *= dim
	}

	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}

	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)

	return clone
}
