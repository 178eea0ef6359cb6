package registry

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"go-face-notify/internal/infrastructure/logger"
)

const badgerKeyPrefix = "conn:"

// Badger is a Registry backed by an embedded BadgerDB. Each connection is one
// key "conn:<connectionID>" holding the subscriber identity.
type Badger struct {
	db *badger.DB
}

var _ Registry = (*Badger)(nil)

// BadgerOptions configures the embedded store.
type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files. Required unless InMemory.
	Dir string

	// InMemory runs BadgerDB without disk persistence.
	InMemory bool

	// Logger receives badger's warnings and errors. Nil silences badger.
	Logger logger.Logger
}

// NewBadger opens the embedded store.
func NewBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("registry: badger directory is required for on-disk mode")
	}

	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{log: opts.Logger})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("registry: open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func badgerKey(connectionID string) []byte {
	return []byte(badgerKeyPrefix + connectionID)
}

func (b *Badger) Save(_ context.Context, connectionID, subscriberID string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(connectionID), []byte(subscriberID))
	})
}

func (b *Badger) Remove(_ context.Context, connectionID string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(connectionID))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (b *Badger) ListAll(ctx context.Context) ([]string, error) {
	prefix := []byte(badgerKeyPrefix)
	var ids []string

	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.PrefetchValues = false
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := it.Item().KeyCopy(nil)
			ids = append(ids, string(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (b *Badger) Get(_ context.Context, connectionID string) (string, error) {
	var subscriberID []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(connectionID))
		if err != nil {
			return err
		}
		subscriberID, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(subscriberID), nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// badgerLogger bridges badger's logger onto ours, dropping debug and info.
type badgerLogger struct {
	log logger.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{}) {
	if l.log != nil {
		l.log.Errorf("[badger] "+f, v...)
	}
}

func (l badgerLogger) Warningf(f string, v ...interface{}) {
	if l.log != nil {
		l.log.Warnf("[badger] "+f, v...)
	}
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}
