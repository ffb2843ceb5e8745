package storage

import (
	"fmt"
	"io"

	"github.com/absmach/fedcoord/pkg/storage/badger"
	"github.com/absmach/fedcoord/pkg/storage/postgres"
	"github.com/absmach/fedcoord/pkg/storage/sqlite"
)

type Config struct {
	Type string `env:"COORDINATOR_STORAGE_TYPE" envDefault:"memory"`

	SQLitePath string `env:"COORDINATOR_SQLITE_PATH" envDefault:"./fedcoord.db"`

	BadgerPath string `env:"COORDINATOR_BADGER_PATH" envDefault:"./data/badger"`

	Postgres postgres.Config `envPrefix:"COORDINATOR_DB_"`
}

type Repositories struct {
	Telemetry TelemetryRepository
	// Closer closes the underlying persistent storage connection.
	// It is nil for the in-memory backend.
	Closer io.Closer
}

func NewRepositories(cfg Config) (*Repositories, error) {
	switch cfg.Type {
	case "sqlite":
		return newSQLiteRepositories(cfg)
	case "badger":
		return newBadgerRepositories(cfg)
	case "postgres":
		return newPostgresRepositories(cfg)
	case "memory":
		return newMemoryRepositories()
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func newSQLiteRepositories(cfg Config) (*Repositories, error) {
	db, err := sqlite.NewDatabase(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Telemetry: sqlite.NewTelemetryRepository(db),
		Closer:    db,
	}, nil
}

func newBadgerRepositories(cfg Config) (*Repositories, error) {
	db, err := badger.NewDatabase(cfg.BadgerPath)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Telemetry: badger.NewTelemetryRepository(db),
		Closer:    db,
	}, nil
}

func newPostgresRepositories(cfg Config) (*Repositories, error) {
	db, err := postgres.NewDatabase(cfg.Postgres)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Telemetry: postgres.NewTelemetryRepository(db),
		Closer:    db,
	}, nil
}

func newMemoryRepositories() (*Repositories, error) {
	return &Repositories{
		Telemetry: newMemoryTelemetryRepository(NewInMemoryStorage()),
	}, nil
}
