package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sonozaki-sz/guild-mng-bot/internal/config"
	"github.com/sonozaki-sz/guild-mng-bot/internal/storage/sqlite"
	"github.com/sonozaki-sz/guild-mng-bot/internal/vac"
)

// Backend is a registry that can list its guilds and be closed.
type Backend interface {
	vac.Registry
	Guilds(ctx context.Context) ([]string, error)
	Close() error
}

var (
	_ Backend = (*Storage)(nil)
	_ Backend = (*sqlite.Store)(nil)
)

// Open opens the backend selected by cfg.StorageBackend.
func Open(cfg *config.Config, logger zerolog.Logger) (Backend, error) {
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.StoragePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendJSON, "":
		return New(Options{
			Path:        cfg.StoragePath,
			BackupCount: cfg.StorageBackupCount,
			Logger:      logger,
		})
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}
