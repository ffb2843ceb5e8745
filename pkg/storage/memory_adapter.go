package storage

import (
	"context"

	pkgerrors "github.com/absmach/fedcoord/pkg/errors"
	"github.com/absmach/fedcoord/pkg/fl"
)

type memoryTelemetryRepo struct {
	storage Storage
}

func newMemoryTelemetryRepository(s Storage) TelemetryRepository {
	return &memoryTelemetryRepo{storage: s}
}

func (r *memoryTelemetryRepo) Append(ctx context.Context, rec fl.DataRecord) error {
	if rec.ID == "" {
		return ErrInvalidID
	}

	return r.storage.Create(ctx, rec.ID, rec)
}

func (r *memoryTelemetryRepo) List(ctx context.Context, offset, limit uint64) ([]fl.DataRecord, uint64, error) {
	data, total, err := r.storage.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	records := make([]fl.DataRecord, len(data))
	for i, d := range data {
		rec, ok := d.(fl.DataRecord)
		if !ok {
			return nil, 0, pkgerrors.ErrInvalidData
		}
		records[i] = rec
	}

	return records, total, nil
}
