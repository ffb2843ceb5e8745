package codec

import "errors"

var (
	ErrUnsupportedDType = errors.New("unsupported dtype")
	ErrLengthMismatch   = errors.New("buffer length does not match dtype and shape")
	ErrInvalidShape     = errors.New("invalid tensor shape")
	ErrInvalidBuffer    = errors.New("unrecognized binary buffer encoding")
)
