package backend

import (
	"fmt"

	"tally/internal/jsonstore"
	"tally/internal/log"
	"tally/internal/storage"
)

// Config holds what the factory needs to build a persister.
type Config struct {
	Type Type

	// jsonfile backend
	DataDirectory string

	// sqlite backend
	SQLiteDBPath string
}

// Validate checks the config against its backend type.
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %q", c.Type)
	}
	switch c.Type {
	case JSONBackend:
		if c.DataDirectory == "" {
			return fmt.Errorf("data directory is required for the jsonfile backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("database path is required for the sqlite backend")
		}
	}
	return nil
}

// Factory creates persisters from configuration.
type Factory struct {
	logger *log.Logger
}

// NewFactory returns a backend factory.
func NewFactory(logger *log.Logger) *Factory {
	return &Factory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Create builds the persister the config names.
func (f *Factory) Create(config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case JSONBackend:
		store, err := jsonstore.New(config.DataDirectory, f.logger)
		if err != nil {
			return nil, fmt.Errorf("initialize jsonfile backend: %w", err)
		}
		f.logger.Info("initialized jsonfile backend",
			log.FieldBackend, config.Type.String(),
			"data_directory", config.DataDirectory,
		)
		return &Result{Persister: store, Cleanup: store.Close}, nil

	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite backend: %w", err)
		}
		f.logger.Info("initialized sqlite backend",
			log.FieldBackend, config.Type.String(),
			"db_path", config.SQLiteDBPath,
		)
		return &Result{Persister: repo, Cleanup: repo.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
