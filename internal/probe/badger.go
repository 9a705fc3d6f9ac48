package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/promptqa/prompteval/internal/models"
)

const probeKeyPrefix = "probe/"

// BadgerConfig holds settings for the on-disk probe cache.
type BadgerConfig struct {
	// Path is the cache directory. Ignored when InMemory is true.
	Path string
	// InMemory skips disk entirely; used by tests.
	InMemory bool
	// SyncWrites trades write latency for durability.
	SyncWrites bool
	// Logger receives badger's internal logs. Nil disables them.
	Logger *slog.Logger
	// EntryTTL is written on each badger entry as a backstop; freshness is
	// still checked against ProbeResult.TTL on read.
	EntryTTL time.Duration
}

// DefaultBadgerConfig returns production settings for a cache directory.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:       path,
		SyncWrites: true,
		EntryTTL:   24 * time.Hour,
	}
}

// BadgerStore persists probe results in a badger database under
// "probe/<model id>" keys.
type BadgerStore struct {
	db       *badger.DB
	entryTTL time.Duration
}

// badgerLogger adapts slog to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// NewBadgerStore opens (creating if needed) the probe cache.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("probe cache path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("creating probe cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening probe cache: %w", err)
	}

	return &BadgerStore{db: db, entryTTL: cfg.EntryTTL}, nil
}

func probeKey(modelID string) []byte {
	return []byte(probeKeyPrefix + modelID)
}

func (s *BadgerStore) Get(ctx context.Context, modelID string) (models.ProbeResult, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.ProbeResult{}, false, err
	}

	var result models.ProbeResult
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(probeKey(modelID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &result)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.ProbeResult{}, false, nil
	}
	if err != nil {
		return models.ProbeResult{}, false, &Error{Op: "get", ModelID: modelID, Err: err}
	}
	return result, true, nil
}

func (s *BadgerStore) Put(ctx context.Context, result models.ProbeResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return &Error{Op: "put", ModelID: result.ModelID, Err: err}
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(probeKey(result.ModelID), data)
		if s.entryTTL > 0 {
			entry = entry.WithTTL(s.entryTTL)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return &Error{Op: "put", ModelID: result.ModelID, Err: err}
	}
	return nil
}

func (s *BadgerStore) Delete(ctx context.Context, modelID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(probeKey(modelID))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return &Error{Op: "delete", ModelID: modelID, Err: err}
	}
	return nil
}

// Clear removes every probe entry; used by `prompteval cache clear`.
func (s *BadgerStore) Clear(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	removed := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(probeKeyPrefix)})
		defer it.Close()

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("clearing probe cache: %w", err)
	}
	return removed, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
