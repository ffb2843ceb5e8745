package storage

import (
	"context"

	"github.com/absmach/fedcoord/pkg/fl"
)

// Storage is a generic ordered key-value store used by the in-memory backend.
type Storage interface {
	Create(ctx context.Context, key string, value any) error
	List(ctx context.Context, offset, limit uint64) ([]any, uint64, error)
}

// TelemetryRepository is an append-only store of client telemetry.
// List returns records in append order.
type TelemetryRepository interface {
	Append(ctx context.Context, r fl.DataRecord) error
	List(ctx context.Context, offset, limit uint64) ([]fl.DataRecord, uint64, error)
}
