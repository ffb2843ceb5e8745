package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/absmach/fedcoord/pkg/fl"
)

const recordPrefix = "record:"

type telemetryRepo struct {
	db *Database
}

func NewTelemetryRepository(db *Database) TelemetryRepository {
	return &telemetryRepo{db: db}
}

// Append stores rec under a sequence-numbered key so iteration follows append order.
func (r *telemetryRepo) Append(_ context.Context, rec fl.DataRecord) error {
	seq, err := r.db.nextSeq()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	return r.db.set(recordKey(seq), val)
}

func (r *telemetryRepo) List(ctx context.Context, offset, limit uint64) ([]fl.DataRecord, uint64, error) {
	prefix := []byte(recordPrefix)
	total, err := r.db.countWithPrefix(prefix)
	if err != nil {
		return nil, 0, err
	}
	values, err := r.db.listWithPrefix(ctx, prefix, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	records := make([]fl.DataRecord, len(values))
	for i, val := range values {
		if err := json.Unmarshal(val, &records[i]); err != nil {
			return nil, 0, fmt.Errorf("unmarshal error: %w", err)
		}
	}

	return records, total, nil
}

func recordKey(seq uint64) []byte {
	return fmt.Appendf(nil, "%s%020d", recordPrefix, seq)
}
