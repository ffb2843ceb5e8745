package sqlite

import (
	"context"
	"database/sql"
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
	ID           string         `db:"id"`
	ClientID     string         `db:"client_id"`
	ModelVersion uint64         `db:"model_version"`
	Input        string         `db:"input"`
	Target       string         `db:"target"`
	Output       sql.NullString `db:"output"`
	Metadata     sql.NullString `db:"metadata"`
	Timestamp    time.Time      `db:"timestamp"`
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
		FROM telemetry ORDER BY seq ASC LIMIT ? OFFSET ?`,
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

	row := dbRecord{
		ID:           rec.ID,
		ClientID:     rec.ClientID,
		ModelVersion: rec.ModelVersion,
		Input:        string(input),
		Target:       string(target),
		Timestamp:    rec.Timestamp.UTC(),
	}
	if rec.Output != nil {
		output, err := json.Marshal(rec.Output)
		if err != nil {
			return dbRecord{}, fmt.Errorf("marshal error: %w", err)
		}
		row.Output = sql.NullString{String: string(output), Valid: true}
	}
	if rec.Metadata != nil {
		metadata, err := json.Marshal(rec.Metadata)
		if err != nil {
			return dbRecord{}, fmt.Errorf("marshal error: %w", err)
		}
		row.Metadata = sql.NullString{String: string(metadata), Valid: true}
	}

	return row, nil
}

func fromDBRecord(row dbRecord) (fl.DataRecord, error) {
	rec := fl.DataRecord{
		ID:           row.ID,
		ClientID:     row.ClientID,
		ModelVersion: row.ModelVersion,
		Timestamp:    row.Timestamp,
	}
	if err := json.Unmarshal([]byte(row.Input), &rec.Input); err != nil {
		return fl.DataRecord{}, fmt.Errorf("unmarshal error: %w", err)
	}
	if err := json.Unmarshal([]byte(row.Target), &rec.Target); err != nil {
		return fl.DataRecord{}, fmt.Errorf("unmarshal error: %w", err)
	}
	if row.Output.Valid {
		rec.Output = &codec.TensorJSON{}
		if err := json.Unmarshal([]byte(row.Output.String), rec.Output); err != nil {
			return fl.DataRecord{}, fmt.Errorf("unmarshal error: %w", err)
		}
	}
	if row.Metadata.Valid {
		if err := json.Unmarshal([]byte(row.Metadata.String), &rec.Metadata); err != nil {
			return fl.DataRecord{}, fmt.Errorf("unmarshal error: %w", err)
		}
	}

	return rec, nil
}
