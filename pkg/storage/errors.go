package storage

import "errors"

var (
	ErrDBConnection = errors.New("database connection error")
	ErrDBQuery      = errors.New("database query error")
	ErrCreate       = errors.New("create error")
	ErrInvalidID    = errors.New("invalid ID")
	ErrNotFound     = errors.New("not found")
)
