package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/absmach/fedcoord/pkg/fl"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
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

type Config struct {
	Host    string `env:"HOST"     envDefault:"localhost"`
	Port    string `env:"PORT"     envDefault:"5432"`
	User    string `env:"USER"     envDefault:"fedcoord"`
	Pass    string `env:"PASS"     envDefault:"fedcoord"`
	Name    string `env:"NAME"     envDefault:"fedcoord"`
	SSLMode string `env:"SSL_MODE" envDefault:"disable"`
}

func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s", c.Host, c.Port, c.User, c.Pass, c.Name, c.SSLMode)
}

type Database struct {
	*sqlx.DB
}

func NewDatabase(cfg Config) (*Database, error) {
	db, err := sqlx.Connect("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
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
						seq BIGSERIAL PRIMARY KEY,
						id VARCHAR(36) NOT NULL UNIQUE,
						client_id VARCHAR(64) NOT NULL,
						model_version BIGINT NOT NULL,
						input JSONB NOT NULL,
						target JSONB NOT NULL,
						output JSONB,
						metadata JSONB,
						timestamp TIMESTAMPTZ NOT NULL
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

	if _, err := migrate.Exec(db.DB.DB, "postgres", migrations, migrate.Up); err != nil {
		return fmt.Errorf("%w: %w", ErrMigration, err)
	}

	return nil
}
