package codec_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/absmach/fedcoord/pkg/codec"
	"github.com/absmach/fedcoord/pkg/tensor"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTensor(t *testing.T) func(*tensor.Tensor, error) *tensor.Tensor {
	return func(tn *tensor.Tensor, err error) *tensor.Tensor {
		t.Helper()
		require.NoError(t, err)

		return tn
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	cases := []struct {
		desc   string
		tensor *tensor.Tensor
	}{
		{
			desc:   "float32 matrix",
			tensor: mustTensor(t)(tensor.FromFloat32([]float32{0.1, -2.5, 3.25, 1e-7, 42, -0}, tensor.Shape{2, 3})),
		},
		{
			desc:   "int32 vector",
			tensor: mustTensor(t)(tensor.FromInt32([]int32{-2147483648, 0, 7, 2147483647}, tensor.Shape{4})),
		},
		{
			desc:   "bool scalar",
			tensor: mustTensor(t)(tensor.FromBool([]bool{true}, tensor.Shape{})),
		},
		{
			desc:   "bool cube",
			tensor: mustTensor(t)(tensor.FromBool([]bool{true, false, false, true, true, false, true, false}, tensor.Shape{2, 2, 2})),
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			st, err := codec.Serialize(tc.tensor)
			require.NoError(t, err)
			assert.Len(t, []byte(st.Data), tc.tensor.ByteSize())

			got, err := codec.Deserialize(st)
			require.NoError(t, err)
			assert.Equal(t, tc.tensor.DType(), got.DType())
			assert.Equal(t, tc.tensor.Shape(), got.Shape())
			assert.Equal(t, tc.tensor.Bytes(), got.Bytes())
		})
	}
}

func TestSerializeSlicesViewTightly(t *testing.T) {
	backing := []byte{9, 9, 9, 9, 1, 0, 0, 0, 2, 0, 0, 0, 9, 9}
	view, err := tensor.NewView(tensor.Int32, tensor.Shape{2}, backing, 4)
	require.NoError(t, err)

	st, err := codec.Serialize(view)
	require.NoError(t, err)
	assert.Equal(t, codec.Buffer{1, 0, 0, 0, 2, 0, 0, 0}, st.Data)

	st.Data[0] = 5
	assert.Equal(t, byte(1), backing[4], "serialized data must not alias the source buffer")
}

func TestSerializeUnsupportedDType(t *testing.T) {
	tn := mustTensor(t)(tensor.FromFloat64([]float64{1, 2}, tensor.Shape{2}))

	_, err := codec.Serialize(tn)
	assert.ErrorIs(t, err, codec.ErrUnsupportedDType)

	_, err = codec.ToJSON(tn)
	assert.ErrorIs(t, err, codec.ErrUnsupportedDType)
}

func TestDeserializeErrors(t *testing.T) {
	cases := []struct {
		desc string
		st   codec.SerializedTensor
		err  error
	}{
		{
			desc: "unknown dtype",
			st:   codec.SerializedTensor{DType: "complex64", Shape: []int{1}, Data: make([]byte, 8)},
			err:  codec.ErrUnsupportedDType,
		},
		{
			desc: "dtype outside the wire set",
			st:   codec.SerializedTensor{DType: "float64", Shape: []int{1}, Data: make([]byte, 8)},
			err:  codec.ErrUnsupportedDType,
		},
		{
			desc: "short buffer",
			st:   codec.SerializedTensor{DType: "float32", Shape: []int{2, 2}, Data: make([]byte, 12)},
			err:  codec.ErrLengthMismatch,
		},
		{
			desc: "long buffer",
			st:   codec.SerializedTensor{DType: "bool", Shape: []int{3}, Data: make([]byte, 4)},
			err:  codec.ErrLengthMismatch,
		},
		{
			desc: "shape product wraps to zero",
			st:   codec.SerializedTensor{DType: "float32", Shape: []int{1 << 62, 4}, Data: nil},
			err:  codec.ErrInvalidShape,
		},
		{
			desc: "shape product wraps to a small count",
			st:   codec.SerializedTensor{DType: "float32", Shape: []int{1<<62 + 1, 4}, Data: make([]byte, 16)},
			err:  codec.ErrInvalidShape,
		},
		{
			desc: "non-positive dimension",
			st:   codec.SerializedTensor{DType: "int32", Shape: []int{2, 0}, Data: nil},
			err:  codec.ErrInvalidShape,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := codec.Deserialize(tc.st)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestJSONRoundTrip(t *testing.T) {
	cases := []struct {
		desc   string
		tensor *tensor.Tensor
	}{
		{desc: "float32", tensor: mustTensor(t)(tensor.FromFloat32([]float32{0.1, 0.2, 0.3}, tensor.Shape{3}))},
		{desc: "int32", tensor: mustTensor(t)(tensor.FromInt32([]int32{-5, 0, 5, 1 << 30}, tensor.Shape{2, 2}))},
		{desc: "bool", tensor: mustTensor(t)(tensor.FromBool([]bool{false, true}, tensor.Shape{2}))},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			tj, err := codec.ToJSON(tc.tensor)
			require.NoError(t, err)

			got, err := codec.FromJSON(tj)
			require.NoError(t, err)
			assert.Equal(t, tc.tensor.DType(), got.DType())
			assert.Equal(t, tc.tensor.Shape(), got.Shape())
			assert.InDeltaSlice(t, tc.tensor.Values(), got.Values(), 1e-6)
		})
	}
}

func TestFromJSONDefaultsToFloat32(t *testing.T) {
	got, err := codec.FromJSON(codec.TensorJSON{Values: []float64{1.5, 2.5}, Shape: []int{2}})
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, got.DType())

	values, err := got.Float32s()
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, 2.5}, values)

	_, err = codec.FromJSON(codec.TensorJSON{Values: []float64{1}, Shape: []int{2}})
	assert.ErrorIs(t, err, codec.ErrLengthMismatch)

	_, err = codec.FromJSON(codec.TensorJSON{Values: []float64{1, 2, 3, 4}, Shape: []int{1<<62 + 1, 4}})
	assert.ErrorIs(t, err, codec.ErrInvalidShape)
}

func TestConversionChains(t *testing.T) {
	src := mustTensor(t)(tensor.FromFloat32([]float32{3.14159, -0.5, 1e10, 7}, tensor.Shape{2, 2}))

	st, err := codec.Serialize(src)
	require.NoError(t, err)

	tj, err := codec.SerializedToJSON(st)
	require.NoError(t, err)

	st2, err := codec.JSONToSerialized(tj)
	require.NoError(t, err)
	assert.Equal(t, st, st2)

	tj2, err := codec.SerializedToJSON(st2)
	require.NoError(t, err)
	assert.Equal(t, tj, tj2)

	got, err := codec.FromJSON(tj2)
	require.NoError(t, err)
	assert.Equal(t, src.Bytes(), got.Bytes())
}

func TestDeserializeAllHonorsContext(t *testing.T) {
	src := mustTensor(t)(tensor.FromInt32([]int32{1, 2}, tensor.Shape{2}))
	sts, err := codec.SerializeAll([]*tensor.Tensor{src, src})
	require.NoError(t, err)

	got, err := codec.DeserializeAll(context.Background(), sts)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = codec.DeserializeAll(ctx, sts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBufferJSONForms(t *testing.T) {
	want := codec.Buffer{0, 0, 128, 63}

	cases := []struct {
		desc string
		data string
		err  error
	}{
		{desc: "base64 string", data: `"AACAPw=="`},
		{desc: "byte array", data: `[0,0,128,63]`},
		{desc: "node buffer frame", data: `{"type":"Buffer","data":[0,0,128,63]}`},
		{desc: "framed base64", data: `{"data":"AACAPw=="}`},
		{desc: "out of range byte", data: `[0,0,300,63]`, err: codec.ErrInvalidBuffer},
		{desc: "frame without data", data: `{"type":"Buffer"}`, err: codec.ErrInvalidBuffer},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			var b codec.Buffer
			err := json.Unmarshal([]byte(tc.data), &b)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, want, b)
		})
	}
}

func TestBufferCBORForms(t *testing.T) {
	want := codec.Buffer{0, 0, 128, 63, 0, 0, 0, 64}

	byteString, err := cbor.Marshal([]byte(want))
	require.NoError(t, err)

	littleEndianF32, err := cbor.Marshal(cbor.Tag{Number: 85, Content: []byte(want)})
	require.NoError(t, err)

	bigEndianF32, err := cbor.Marshal(cbor.Tag{Number: 81, Content: []byte{63, 128, 0, 0, 64, 0, 0, 0}})
	require.NoError(t, err)

	framed, err := cbor.Marshal(map[string]any{"type": "Buffer", "data": []byte(want)})
	require.NoError(t, err)

	array, err := cbor.Marshal([]uint64{0, 0, 128, 63, 0, 0, 0, 64})
	require.NoError(t, err)

	cases := []struct {
		desc string
		data []byte
	}{
		{desc: "byte string", data: byteString},
		{desc: "little-endian float32 typed array", data: littleEndianF32},
		{desc: "big-endian float32 typed array", data: bigEndianF32},
		{desc: "framed map", data: framed},
		{desc: "byte array", data: array},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			var b codec.Buffer
			require.NoError(t, cbor.Unmarshal(tc.data, &b))
			assert.Equal(t, want, b)
		})
	}
}

func TestSerializedTensorWireRoundTrip(t *testing.T) {
	src := mustTensor(t)(tensor.FromFloat32([]float32{1, 2, 3}, tensor.Shape{3}))
	st, err := codec.Serialize(src)
	require.NoError(t, err)

	jsonData, err := json.Marshal(st)
	require.NoError(t, err)
	var fromJSON codec.SerializedTensor
	require.NoError(t, json.Unmarshal(jsonData, &fromJSON))
	assert.Equal(t, st, fromJSON)

	cborData, err := cbor.Marshal(st)
	require.NoError(t, err)
	var fromCBOR codec.SerializedTensor
	require.NoError(t, cbor.Unmarshal(cborData, &fromCBOR))
	assert.Equal(t, st, fromCBOR)
}
