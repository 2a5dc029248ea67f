// Package badgerstore keeps document payloads in an embedded Badger
// key-value store.
package badgerstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/JustWint3r/SecureShare/internal/common"
	"github.com/dgraph-io/badger/v4"
)

type Store struct {
	db *badger.DB
}

// Open opens (or creates) a Badger database at path. An empty path opens an
// in-memory database.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Put(_ context.Context, locator string, data []byte) (string, error) {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(locator), data)
	})
	if err != nil {
		return "", fmt.Errorf("badger put %s: %w: %w", locator, common.ErrStorage, err)
	}
	return locator, nil
}

func (s *Store) Get(_ context.Context, locator string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(locator))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("object %s: %w", locator, common.ErrNotFound)
		}
		return nil, fmt.Errorf("badger get %s: %w: %w", locator, common.ErrStorage, err)
	}
	return out, nil
}

func (s *Store) Delete(_ context.Context, locator string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(locator))
	})
	if err != nil {
		return fmt.Errorf("badger delete %s: %w: %w", locator, common.ErrStorage, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
