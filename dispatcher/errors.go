package dispatcher

import "errors"

var (
	ErrUnknownSession   = errors.New("unknown session")
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownEvent     = errors.New("unknown event")
	ErrInvalidPolicy    = errors.New("invalid queue policy")
	ErrSessionExists    = errors.New("session already connected")
)
