// Package codec converts tensors to and from their wire representations: the
// compact SerializedTensor carrying raw little-endian bytes and the verbose
// TensorJSON carrying a flat list of numbers.
package codec

import (
	"context"
	"fmt"

	"github.com/absmach/fedcoord/pkg/tensor"
)

const defaultJSONDType = tensor.Float32

// SerializedTensor is the binary wire form of a tensor.
type SerializedTensor struct {
	DType string `json:"dtype"`
	Shape []int  `json:"shape"`
	Data  Buffer `json:"data"`
}

// TensorJSON is the human-readable form of a tensor. An empty DType means float32.
type TensorJSON struct {
	Values []float64 `json:"values"`
	Shape  []int     `json:"shape"`
	DType  string    `json:"dtype,omitempty"`
}

// Serialize copies the tensor's own bytes into a SerializedTensor.
func Serialize(t *tensor.Tensor) (SerializedTensor, error) {
	if t == nil {
		return SerializedTensor{}, fmt.Errorf("%w: nil tensor", ErrInvalidShape)
	}
	if !wireDType(t.DType()) {
		return SerializedTensor{}, fmt.Errorf("%w: %s", ErrUnsupportedDType, t.DType())
	}

	src := t.Bytes()
	data := make([]byte, len(src))
	copy(data, src)

	return SerializedTensor{
		DType: t.DType().String(),
		Shape: t.Shape(),
		Data:  data,
	}, nil
}

// Deserialize validates st and builds a tensor that owns a copy of its data.
func Deserialize(st SerializedTensor) (*tensor.Tensor, error) {
	dtype, err := parseWireDType(st.DType)
	if err != nil {
		return nil, err
	}
	shape := tensor.Shape(st.Shape)
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidShape, err)
	}
	if want := dtype.Size() * shape.NumElements(); len(st.Data) != want {
		return nil, fmt.Errorf("%w: %s%v needs %d bytes, got %d", ErrLengthMismatch, dtype, st.Shape, want, len(st.Data))
	}

	return tensor.New(dtype, shape, st.Data)
}

// ToJSON flattens t into a TensorJSON.
func ToJSON(t *tensor.Tensor) (TensorJSON, error) {
	if t == nil {
		return TensorJSON{}, fmt.Errorf("%w: nil tensor", ErrInvalidShape)
	}
	if !wireDType(t.DType()) {
		return TensorJSON{}, fmt.Errorf("%w: %s", ErrUnsupportedDType, t.DType())
	}

	return TensorJSON{
		Values: t.Values(),
		Shape:  t.Shape(),
		DType:  t.DType().String(),
	}, nil
}

// FromJSON rebuilds a tensor from its JSON form.
func FromJSON(tj TensorJSON) (*tensor.Tensor, error) {
	dtype := defaultJSONDType
	if tj.DType != "" {
		var err error
		if dtype, err = parseWireDType(tj.DType); err != nil {
			return nil, err
		}
	}
	shape := tensor.Shape(tj.Shape)
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidShape, err)
	}
	if len(tj.Values) != shape.NumElements() {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrLengthMismatch, len(tj.Values), tj.Shape)
	}

	return tensor.FromValues(dtype, tj.Values, shape)
}

func SerializedToJSON(st SerializedTensor) (TensorJSON, error) {
	t, err := Deserialize(st)
	if err != nil {
		return TensorJSON{}, err
	}

	return ToJSON(t)
}

func JSONToSerialized(tj TensorJSON) (SerializedTensor, error) {
	t, err := FromJSON(tj)
	if err != nil {
		return SerializedTensor{}, err
	}

	return Serialize(t)
}

// SerializeAll serializes a list of tensors, failing on the first error.
func SerializeAll(ts []*tensor.Tensor) ([]SerializedTensor, error) {
	out := make([]SerializedTensor, len(ts))
	for i, t := range ts {
		st, err := Serialize(t)
		if err != nil {
			return nil, fmt.Errorf("tensor %d: %w", i, err)
		}
		out[i] = st
	}

	return out, nil
}

// DeserializeAll decodes a list of tensors, stopping early when ctx is done.
func DeserializeAll(ctx context.Context, sts []SerializedTensor) ([]*tensor.Tensor, error) {
	out := make([]*tensor.Tensor, len(sts))
	for i, st := range sts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := Deserialize(st)
		if err != nil {
			return nil, fmt.Errorf("tensor %d: %w", i, err)
		}
		out[i] = t
	}

	return out, nil
}

// ToJSONAll converts a list of tensors to their JSON form.
func ToJSONAll(ts []*tensor.Tensor) ([]TensorJSON, error) {
	out := make([]TensorJSON, len(ts))
	for i, t := range ts {
		tj, err := ToJSON(t)
		if err != nil {
			return nil, fmt.Errorf("tensor %d: %w", i, err)
		}
		out[i] = tj
	}

	return out, nil
}

// FromJSONAll rebuilds a list of tensors from their JSON form.
func FromJSONAll(tjs []TensorJSON) ([]*tensor.Tensor, error) {
	out := make([]*tensor.Tensor, len(tjs))
	for i, tj := range tjs {
		t, err := FromJSON(tj)
		if err != nil {
			return nil, fmt.Errorf("tensor %d: %w", i, err)
		}
		out[i] = t
	}

	return out, nil
}

func wireDType(dt tensor.DataType) bool {
	switch dt {
	case tensor.Float32, tensor.Int32, tensor.Bool:
		return true
	default:
		return false
	}
}

func parseWireDType(name string) (tensor.DataType, error) {
	dt, err := tensor.ParseDataType(name)
	if err != nil || !wireDType(dt) {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedDType, name)
	}

	return dt, nil
}
