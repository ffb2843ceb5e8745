package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// RFC 8746 typed array tags occupy 64..87.
const (
	typedArrayFirstTag = 64
	typedArrayLastTag  = 87
)

// Buffer carries raw tensor bytes. Transports and client libraries do not all
// marshal byte buffers the same way, so unmarshaling accepts:
//
//   - JSON: a base64 string, an array of byte values, or a framed object such
//     as {"type":"Buffer","data":[...]}.
//   - CBOR: a byte string, an RFC 8746 typed array tag, an array of byte
//     values, or a framed map with a "data" entry.
//
// Every form is normalized to raw little-endian bytes. Marshaling always emits
// the compact form: base64 for JSON, a byte string for CBOR.
type Buffer []byte

func (b Buffer) MarshalJSON() ([]byte, error) {
	return json.Marshal([]byte(b))
}

func (b *Buffer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = nil

		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidBuffer, err)
		}
		*b = raw

		return nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	raw, err := normalize(v)
	if err != nil {
		return err
	}
	*b = raw

	return nil
}

func (b Buffer) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal([]byte(b))
}

func (b *Buffer) UnmarshalCBOR(data []byte) error {
	if len(data) == 0 {
		return ErrInvalidBuffer
	}

	const (
		majorByteString = 2
		simpleNull      = 0xf6
	)

	switch {
	case data[0] == simpleNull:
		*b = nil

		return nil
	case data[0]>>5 == majorByteString:
		var raw []byte
		if err := cbor.Unmarshal(data, &raw); err != nil {
			return err
		}
		*b = raw

		return nil
	}

	var v any
	if err := cbor.Unmarshal(data, &v); err != nil {
		return err
	}
	raw, err := normalize(v)
	if err != nil {
		return err
	}
	*b = raw

	return nil
}

func normalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		out := make([]byte, len(val))
		copy(out, val)

		return out, nil
	case string:
		raw, err := base64.StdEncoding.DecodeString(val)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidBuffer, err)
		}

		return raw, nil
	case []any:
		out := make([]byte, len(val))
		for i, e := range val {
			n, err := byteValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}

		return out, nil
	case map[string]any:
		data, ok := val["data"]
		if !ok {
			return nil, fmt.Errorf("%w: framed buffer without data", ErrInvalidBuffer)
		}

		return normalize(data)
	case map[any]any:
		for k, data := range val {
			if key, ok := k.(string); ok && key == "data" {
				return normalize(data)
			}
		}

		return nil, fmt.Errorf("%w: framed buffer without data", ErrInvalidBuffer)
	case cbor.Tag:
		if val.Number >= typedArrayFirstTag && val.Number <= typedArrayLastTag {
			return typedArray(val)
		}

		return normalize(val.Content)
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidBuffer, v)
	}
}

// typedArray converts an RFC 8746 typed array into little-endian bytes.
func typedArray(tag cbor.Tag) ([]byte, error) {
	content, ok := tag.Content.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: typed array tag %d without byte string", ErrInvalidBuffer, tag.Number)
	}
	out := make([]byte, len(content))
	copy(out, content)

	bits := tag.Number - typedArrayFirstTag
	float := bits&0x10 != 0
	little := bits&0x04 != 0
	ll := bits & 0x03

	size := 1 << ll
	if float {
		size = 2 << ll
	}
	if little || size == 1 {
		return out, nil
	}
	if len(out)%size != 0 {
		return nil, fmt.Errorf("%w: typed array length %d not a multiple of %d", ErrInvalidBuffer, len(out), size)
	}
	for i := 0; i < len(out); i += size {
		elem := out[i : i+size]
		for l, r := 0, size-1; l < r; l, r = l+1, r-1 {
			elem[l], elem[r] = elem[r], elem[l]
		}
	}

	return out, nil
}

func byteValue(v any) (byte, error) {
	var n float64
	switch val := v.(type) {
	case float64:
		n = val
	case uint64:
		n = float64(val)
	case int64:
		n = float64(val)
	default:
		return 0, fmt.Errorf("%w: non-numeric byte %T", ErrInvalidBuffer, v)
	}
	if n < 0 || n > math.MaxUint8 || n != math.Trunc(n) {
		return 0, fmt.Errorf("%w: byte value %v out of range", ErrInvalidBuffer, n)
	}

	return byte(n), nil
}
