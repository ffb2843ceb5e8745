package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/absmach/fedcoord/pkg/codec"
	"github.com/absmach/fedcoord/pkg/fl"
)

type telemetryRepo struct {
	db *Database
}

type dbRecord struct {
	ID           string    `db:"id"`
	ClientID     string    `db:"client_id"`
	ModelVersion int64     `db:"model_version"`
	Input        []byte    `db:"input"`
	Target       []byte    `db:"target"`
	Output       []byte    `db:"output"`
	Metadata     []byte    `db:"metadata"`
	Timestamp    time.Time `db:"timestamp"`
}

func NewTelemetryRepository(db *Database) TelemetryRepository {
	return &telemetryRepo{db: db}
}

func (r *telemetryRepo) Append(ctx context.Context, rec fl.DataRecord) error {
	row, err := toDBRecord(rec)
	if err != nil {
		return err
	}

	if _, err := r.db.NamedExecContext(
		ctx,
		`INSERT INTO telemetry (id, client_id, model_version, input, target, output, metadata, timestamp)
		VALUES (:id, :client_id, :model_version, :input, :target, :output, :metadata, :timestamp)`,
		row,
	); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *telemetryRepo) List(ctx context.Context, offset, limit uint64) ([]fl.DataRecord, uint64, error) {
	var total uint64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM telemetry"); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	var rows []dbRecord
	if err := r.db.SelectContext(
		ctx,
		&rows,
		`SELECT id, client_id, model_version, input, target, output, metadata, timestamp
		FROM telemetry ORDER BY seq ASC LIMIT $1 OFFSET $2`,
		limit,
		offset,
	); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	records := make([]fl.DataRecord, len(rows))
	for i, row := range rows {
		rec, err := fromDBRecord(row)
		if err != nil {
			return nil, 0, err
		}
		records[i] = rec
	}

	return records, total, nil
}

func toDBRecord(rec fl.DataRecord) (dbRecord, error) {
	input, err := json.Marshal(rec.Input)
	if err != nil {
		return dbRecord{}, fmt.Errorf("marshal error: %w", err)
	}
	target, err := json.Marshal(rec.Target)
	if err != nil {
		return dbRecord{}, fmt.Errorf("marshal error: %w", err)
	}
	output, err := jsonBytes(rec.Output)
	if err != nil {
		return dbRecord{}, fmt.Errorf("marshal error: %w", err)
	}
	metadata, err := jsonBytes(rec.Metadata)
	if err != nil {
		return dbRecord{}, fmt.Errorf("marshal error: %w", err)
	}

	return dbRecord{
		ID:           rec.ID,
		ClientID:     rec.ClientID,
		ModelVersion: int64(rec.ModelVersion),
		Input:        input,
		Target:       target,
		Output:       output,
		Metadata:     metadata,
		Timestamp:    rec.Timestamp.UTC(),
	}, nil
}

func fromDBRecord(row dbRecord) (fl.DataRecord, error) {
	rec := fl.DataRecord{
		ID:           row.ID,
		ClientID:     row.ClientID,
		ModelVersion: uint64(row.ModelVersion),
		Timestamp:    row.Timestamp,
	}
	if err := json.Unmarshal(row.Input, &rec.Input); err != nil {
		return fl.DataRecord{}, fmt.Errorf("unmarshal error: %w", err)
	}
	if err := json.Unmarshal(row.Target, &rec.Target); err != nil {
		return fl.DataRecord{}, fmt.Errorf("unmarshal error: %w", err)
	}
	if row.Output != nil {
		rec.Output = &codec.TensorJSON{}
		if err := json.Unmarshal(row.Output, rec.Output); err != nil {
			return fl.DataRecord{}, fmt.Errorf("unmarshal error: %w", err)
		}
	}
	if err := jsonUnmarshal(row.Metadata, &rec.Metadata); err != nil {
		return fl.DataRecord{}, fmt.Errorf("unmarshal error: %w", err)
	}

	return rec, nil
}

// jsonBytes maps nil pointers and maps to SQL NULL.
func jsonBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case *codec.TensorJSON:
		if x == nil {
			return nil, nil
		}
	case map[string]any:
		if x == nil {
			return nil, nil
		}
	}

	return json.Marshal(v)
}

func jsonUnmarshal(data []byte, v any) error {
	if data == nil {
		return nil
	}

	return json.Unmarshal(data, v)
}
