package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrEmptyKey     = errors.New("empty key")
	ErrInvalidData  = errors.New("invalid data type")
	ErrEntityExists = errors.New("entity already exists")
	ErrQueueFull    = errors.New("message queue is full, retry later")
	ErrClosed       = errors.New("resource is closed")
)
