// Package badger persists JSON documents in an embedded Badger database.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	badgerdb "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/r-heap47/gamehost/internal/pkg/utils"
)

// ErrNotFound - no document under the key
var ErrNotFound = errors.New("not found")

// Config configures the store. An empty Path with InMemory set keeps everything in RAM.
type Config struct {
	Path     string
	InMemory bool
	Logger   *zap.Logger
}

// Store is a key -> JSON document store.
type Store struct {
	db *badgerdb.DB
}

// Open opens (or creates) the database.
func Open(cfg Config) (*Store, error) {
	var opts badgerdb.Options
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badgerdb.DefaultOptions(filepath.Clean(cfg.Path))
		opts = opts.WithValueLogFileSize(1 << 20)
	}

	if cfg.Logger != nil {
		opts = opts.WithLogger(logger{cfg.Logger.Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger.Open: %w", err)
	}

	return &Store{db: db}, nil
}

// Get decodes the document under key into v.
func (s *Store) Get(ctx context.Context, key string, v any) error {
	if err := utils.CtxDone(ctx); err != nil {
		return err
	}

	return s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}

		return item.Value(func(raw []byte) error {
			return json.Unmarshal(raw, v)
		})
	})
}

// Put stores v as JSON under key.
func (s *Store) Put(ctx context.Context, key string, v any) error {
	if err := utils.CtxDone(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// logger adapts zap to badger's logger interface.
type logger struct {
	s *zap.SugaredLogger
}

func (l logger) Errorf(format string, args ...any)   { l.s.Errorf(format, args...) }
func (l logger) Warningf(format string, args ...any) { l.s.Warnf(format, args...) }
func (l logger) Infof(format string, args ...any)    { l.s.Debugf(format, args...) }
func (l logger) Debugf(format string, args ...any)   { l.s.Debugf(format, args...) }
