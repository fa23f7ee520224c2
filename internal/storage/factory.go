package storage

import (
	"context"
	"fmt"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/config"
)

// New opens the backend selected by cfg.DBType and wraps it with bounded retry.
func New(ctx context.Context, cfg *config.Config, logger internal.Logger) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.DBType {
	case "file":
		store, err = NewFileStorage(cfg.FileProfiles, cfg.FileSleep, logger)
	case "sqlite":
		store, err = NewSQLiteStorage(cfg.SQLitePath, logger)
	case "postgres":
		store, err = NewPostgresStorage(ctx, cfg.DBDSN, logger)
	case "mongo":
		store, err = NewMongoStorage(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.DBType)
	}
	if err != nil {
		return nil, err
	}
	logger.Infof("storage: using %s backend", cfg.DBType)
	return NewRetryStore(store, cfg.RetryAttempts, logger), nil
}
