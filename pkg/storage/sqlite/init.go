package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/absmach/fedcoord/pkg/fl"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
)

var (
	ErrDBConnection = errors.New("database connection error")
	ErrDBQuery      = errors.New("database query error")
	ErrMigration    = errors.New("database migration error")
	ErrCreate       = errors.New("create error")
)

type TelemetryRepository interface {
	Append(ctx context.Context, r fl.DataRecord) error
	List(ctx context.Context, offset, limit uint64) ([]fl.DataRecord, uint64, error)
}

type Database struct {
	*sqlx.DB
}

func NewDatabase(path string) (*Database, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	database := &Database{DB: db}

	if err := database.Migrate(); err != nil {
		return nil, errors.Join(err, db.Close())
	}

	return database, nil
}

func (db *Database) Migrate() error {
	migrations := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "1_create_telemetry",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS telemetry (
						seq INTEGER PRIMARY KEY AUTOINCREMENT,
						id TEXT NOT NULL UNIQUE,
						client_id TEXT NOT NULL,
						model_version INTEGER NOT NULL,
						input TEXT NOT NULL,
						target TEXT NOT NULL,
						output TEXT,
						metadata TEXT,
						timestamp TIMESTAMP NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_telemetry_model_version ON telemetry(model_version)`,
					`CREATE INDEX IF NOT EXISTS idx_telemetry_client_id ON telemetry(client_id)`,
				},
				Down: []string{
					`DROP INDEX IF EXISTS idx_telemetry_client_id`,
					`DROP INDEX IF EXISTS idx_telemetry_model_version`,
					`DROP TABLE IF EXISTS telemetry`,
				},
			},
		},
	}

	if _, err := migrate.Exec(db.DB.DB, "sqlite3", migrations, migrate.Up); err != nil {
		return fmt.Errorf("%w: %w", ErrMigration, err)
	}

	return nil
}
