// Package badgerdb opens the embedded BadgerDB store and provides the
// helpers the feature repositories share: JSON records, prefix scans and
// transactions that retry on write conflicts.
//
// Badger transactions are serializable: when two writers read the same key
// and both write, the second commit fails with badger.ErrConflict. Update
// retries such transactions, so a read-check-write inside fn behaves like a
// row lock plus a unique constraint in the SQL backend.
package badgerdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"

	"civicpulse.app/engagement/internal/config"
)

// maxConflictRetries bounds Update retries under contention.
const maxConflictRetries = 64

// ErrTooManyConflicts is returned when Update could not commit after retrying.
var ErrTooManyConflicts = errors.New("badger: too many transaction conflicts")

// DB wraps *badger.DB.
type DB struct {
	*badger.DB
}

// Open opens the store described by cfg.
func Open(cfg *config.Config) (*DB, error) {
	if cfg.BadgerInMemory {
		return OpenInMemory()
	}
	if err := os.MkdirAll(cfg.BadgerPath, 0750); err != nil {
		return nil, fmt.Errorf("create database directory %s: %w", cfg.BadgerPath, err)
	}
	opts := badger.DefaultOptions(cfg.BadgerPath).
		WithSyncWrites(true).
		WithNumVersionsToKeep(1).
		WithLogger(&logrusAdapter{entry: log.WithField("component", "badger")})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	log.WithField("path", cfg.BadgerPath).Info("Embedded store opened")
	return &DB{DB: db}, nil
}

// OpenInMemory opens a store without disk persistence. Used by tests.
func OpenInMemory() (*DB, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithSyncWrites(false).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger database: %w", err)
	}
	return &DB{DB: db}, nil
}

// Update runs fn in a read-write transaction, retrying on badger.ErrConflict.
// fn may run more than once and must not leak side effects outside the txn.
func (d *DB) Update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := d.DB.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return ErrTooManyConflicts
}

// View runs fn in a read-only transaction.
func (d *DB) View(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.DB.View(fn)
}

// Key joins parts with '/'.
func Key(parts ...string) []byte {
	return []byte(strings.Join(parts, "/"))
}

// Prefix is Key with a trailing separator, for scans.
func Prefix(parts ...string) []byte {
	return []byte(strings.Join(parts, "/") + "/")
}

// GetJSON decodes the value at key into v. found is false when the key is absent.
func GetJSON(txn *badger.Txn, key []byte, v any) (found bool, err error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

// Exists reports whether key is present.
func Exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// SetJSON encodes v and stores it at key.
func SetJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return txn.Set(key, data)
}

// Scan calls fn for the raw value of every key under prefix, in key order.
// reverse walks the prefix from the end.
func Scan(txn *badger.Txn, prefix []byte, reverse bool, fn func(key, val []byte) (bool, error)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.Reverse = reverse
	it := txn.NewIterator(opts)
	defer it.Close()

	seek := prefix
	if reverse {
		seek = append(append([]byte{}, prefix...), 0xFF)
	}
	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		more, err := fn(item.KeyCopy(nil), val)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

// ScanJSON decodes every value under prefix into a fresh T and passes it to fn.
func ScanJSON[T any](txn *badger.Txn, prefix []byte, reverse bool, fn func(*T) bool) error {
	return Scan(txn, prefix, reverse, func(_, val []byte) (bool, error) {
		var v T
		if err := json.Unmarshal(val, &v); err != nil {
			return false, err
		}
		return fn(&v), nil
	})
}

// Count returns the number of keys under prefix without reading values.
func Count(txn *badger.Txn, prefix []byte) (int64, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var n int64
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		n++
	}
	return n, nil
}

// logrusAdapter routes badger's internal logging into logrus.
type logrusAdapter struct {
	entry *log.Entry
}

func (l *logrusAdapter) Errorf(format string, args ...interface{})   { l.entry.Errorf(format, args...) }
func (l *logrusAdapter) Warningf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }
func (l *logrusAdapter) Infof(format string, args ...interface{})    { l.entry.Debugf(format, args...) }
func (l *logrusAdapter) Debugf(format string, args ...interface{})   { l.entry.Debugf(format, args...) }
