package watchlist

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/fystack/walletstream/pkg/common/utils"
)

// BadgerStore is a local implementation of the same keyed-list contract,
// used for development and tests where the hosted service is unavailable.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStoreInMemory backs the store with badger's in-memory mode.
func NewBadgerStoreInMemory() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func itemKey(listKey, item string) []byte {
	return []byte(listKey + "/" + item)
}

func listMarkerKey(listKey string) []byte {
	return []byte(listKey)
}

func (s *BadgerStore) Add(ctx context.Context, listKey, item string) error {
	normalized := NormalizeItem(item, listKey)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(itemKey(listKey, normalized), nil)
	})
}

func (s *BadgerStore) Remove(ctx context.Context, listKey, item string) (bool, error) {
	normalized := NormalizeItem(item, listKey)
	existed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		key := itemKey(listKey, normalized)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		existed = true
		return txn.Delete(key)
	})
	return existed, err
}

func (s *BadgerStore) Contains(ctx context.Context, listKey, item string) (bool, error) {
	normalized := NormalizeItem(item, listKey)
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(itemKey(listKey, normalized))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (s *BadgerStore) ContainsBatch(ctx context.Context, listKey string, items []string) ([]bool, error) {
	results := make([]bool, len(items))
	err := s.db.View(func(txn *badger.Txn) error {
		for i, item := range items {
			normalized := NormalizeItem(item, listKey)
			_, err := txn.Get(itemKey(listKey, normalized))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			results[i] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// createListBatchSize keeps each write transaction under badger's size cap
// when a large address set is loaded at once.
const createListBatchSize = 1000

func (s *BadgerStore) CreateList(ctx context.Context, listKey string, initialItems []string) error {
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(listMarkerKey(listKey), nil)
	}); err != nil {
		return err
	}

	for _, chunk := range utils.ChunkBySize(initialItems, createListBatchSize) {
		err := s.db.Update(func(txn *badger.Txn) error {
			for _, item := range chunk {
				normalized := NormalizeItem(item, listKey)
				if err := txn.Set(itemKey(listKey, normalized), nil); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
