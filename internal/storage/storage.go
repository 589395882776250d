// Package storage selects the device store named by storage.provider.
//
// SQLite is the default and shares the database file with the audit trail.
// The other providers exist for sites that keep records elsewhere: memory
// for demos and tests, mysql through gorm, and dynamodb through the AWS SDK.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/nerrad567/gatehouse/internal/device"
	"github.com/nerrad567/gatehouse/internal/infrastructure/config"
	"github.com/nerrad567/gatehouse/internal/storage/dynamo"
	"github.com/nerrad567/gatehouse/internal/storage/gormstore"
	"github.com/nerrad567/gatehouse/internal/storage/memory"
)

// ErrUnsupportedProvider is returned for an unknown storage.provider.
var ErrUnsupportedProvider = errors.New("storage: unsupported provider")

// Store is a device repository that may hold resources to release.
type Store interface {
	device.Repository
	Close() error
}

// Constructor builds a Store from configuration. db is the open SQLite
// handle, used only by the sqlite provider.
type Constructor func(ctx context.Context, cfg config.StorageConfig, db *sql.DB) (Store, error)

// Constructors maps provider names to constructors.
var Constructors = map[string]Constructor{
	config.StorageSQLite:   openSQLite,
	config.StorageMemory:   openMemory,
	config.StorageMySQL:    openMySQL,
	config.StorageDynamoDB: openDynamo,
}

// Open returns the Store for cfg.Provider. An empty provider means sqlite.
func Open(ctx context.Context, cfg config.StorageConfig, db *sql.DB) (Store, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = config.StorageSQLite
	}

	constructor, ok := Constructors[provider]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnsupportedProvider, provider, strings.Join(Providers(), ", "))
	}
	return constructor(ctx, cfg, db)
}

// Providers lists the registered provider names, sorted.
func Providers() []string {
	names := make([]string, 0, len(Constructors))
	for name := range Constructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// nopCloser adapts a repository without resources of its own.
type nopCloser struct {
	device.Repository
}

func (nopCloser) Close() error { return nil }

func openSQLite(_ context.Context, _ config.StorageConfig, db *sql.DB) (Store, error) {
	if db == nil {
		return nil, errors.New("storage: sqlite provider needs an open database")
	}
	return nopCloser{device.NewSQLiteRepository(db)}, nil
}

func openMemory(context.Context, config.StorageConfig, *sql.DB) (Store, error) {
	return nopCloser{memory.NewStore()}, nil
}

func openMySQL(_ context.Context, cfg config.StorageConfig, _ *sql.DB) (Store, error) {
	store, err := gormstore.Open(gormstore.Options{
		DSN:          cfg.MySQL.DSN,
		MaxOpenConns: cfg.MySQL.MaxOpenConns,
		AutoMigrate:  cfg.MySQL.AutoMigrate,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func openDynamo(ctx context.Context, cfg config.StorageConfig, _ *sql.DB) (Store, error) {
	store, err := dynamo.Open(ctx, dynamo.Options{
		Region:          cfg.DynamoDB.Region,
		Table:           cfg.DynamoDB.Table,
		Endpoint:        cfg.DynamoDB.Endpoint,
		AccessKeyID:     cfg.DynamoDB.AccessKeyID,
		SecretAccessKey: cfg.DynamoDB.SecretAccessKey,
		CreateTable:     cfg.DynamoDB.CreateTable,
	})
	if err != nil {
		return nil, err
	}
	return dynamoCloser{store}, nil
}

// dynamoCloser adds a no-op Close; the SDK client holds no connections to release.
type dynamoCloser struct {
	*dynamo.Store
}

func (dynamoCloser) Close() error { return nil }
