package state

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/zoom-search-connector/internal/config"
)

// NewStore opens the storage backend selected by the configuration.
//
// For file storage the state lives in the configured directory. For postgres a
// connection pool is opened; the schema must already exist (see the migrate
// command). For mongodb the client is connected and pinged.
func NewStore(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.GetStorageType() {
	case config.StorageTypePostgres:
		pool, err := NewPool(ctx, cfg.Storage.Database)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(pool), nil
	case config.StorageTypeMongoDB:
		uri, err := cfg.Storage.MongoDB.GetURI()
		if err != nil {
			return nil, err
		}
		return ConnectMongo(ctx, uri, cfg.Storage.MongoDB.Database)
	case config.StorageTypeFile:
		return NewFileStore(cfg.GetStorageDirectory())
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.GetStorageType())
	}
}

// NewPool opens a pgx pool for the database configuration.
func NewPool(ctx context.Context, dbCfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	if dbCfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}
	connString, err := dbCfg.GetConnectionString()
	if err != nil {
		return nil, fmt.Errorf("failed to build connection string: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database configuration: %w", err)
	}
	if dbCfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = dbCfg.MaxOpenConns
	}
	if dbCfg.ConnMaxLifetime != "" {
		lifetime, err := time.ParseDuration(dbCfg.ConnMaxLifetime)
		if err != nil {
			return nil, fmt.Errorf("invalid connection max lifetime: %w", err)
		}
		poolCfg.MaxConnLifetime = lifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}
