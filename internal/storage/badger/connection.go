// Package badger implements storage.Manager over BadgerDB via
// badgerhold, grounded on the teacher's internal/storage/badger
// package: the same badgerhold.Store connection, Where-query and
// Upsert idioms, adapted from job/document storage to the watcher and
// workflow entities of spec §3.
package badger

import (
	"fmt"
	"os"
	"path/filepath"

	badgerv4 "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/GabriWar/vigilant/internal/common"
)

// DB wraps a badgerhold connection.
type DB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// Open creates (or reopens) the Badger-backed store at cfg.Path.
func Open(logger arbor.ILogger, cfg *common.StorageConfig) (*DB, error) {
	if cfg.ResetOnStartup {
		if _, err := os.Stat(cfg.Path); err == nil {
			logger.Debug().Str("path", cfg.Path).Msg("deleting existing database (reset_on_startup=true)")
			if err := os.RemoveAll(cfg.Path); err != nil {
				logger.Warn().Err(err).Str("path", cfg.Path).Msg("failed to delete database directory")
			}
		}
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	options := badgerhold.DefaultOptions
	options.Dir = cfg.Path
	options.ValueDir = cfg.Path
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	logger.Debug().Str("path", cfg.Path).Msg("badger database initialized")

	return &DB{store: store, logger: logger}, nil
}

// Store returns the underlying badgerhold store.
func (d *DB) Store() *badgerhold.Store { return d.store }

// Badger returns the underlying badger handle, for the rare operation
// (sequence allocation, transactions) badgerhold doesn't wrap.
func (d *DB) Badger() *badgerv4.DB { return d.store.Badger() }

// Close closes the database connection.
func (d *DB) Close() error {
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}
