package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/bakkerme/newsfeed/internal/core"
)

var (
	badgerNewsKey      = []byte("news")
	badgerWatermarkKey = []byte("latest_update")
)

// BadgerBackend stores both artifacts as values in an embedded badger
// database and replaces them in a single transaction.
type BadgerBackend struct {
	db *badger.DB
}

func NewBadgerBackend(path string) (*BadgerBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("badger store path is required")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerBackend{db: db}, nil
}

func (b *BadgerBackend) ReadWatermark(ctx context.Context) (watermark time.Time, ok bool, err error) {
	_ = ctx
	err = b.db.View(func(txn *badger.Txn) error {
		watermark, ok, err = badgerWatermark(txn)
		return err
	})
	return watermark, ok, err
}

func (b *BadgerBackend) ReadItems(ctx context.Context) (items []core.Item, err error) {
	_ = ctx
	err = b.db.View(func(txn *badger.Txn) error {
		items, err = badgerItems(txn)
		return err
	})
	return items, err
}

func (b *BadgerBackend) Snapshot(ctx context.Context) (Snapshot, error) {
	_ = ctx
	var snapshot Snapshot
	err := b.db.View(func(txn *badger.Txn) error {
		items, err := badgerItems(txn)
		if err != nil {
			return err
		}
		watermark, ok, err := badgerWatermark(txn)
		if err != nil {
			return err
		}
		snapshot = Snapshot{Items: items, Watermark: watermark, HasWatermark: ok}
		return nil
	})
	return snapshot, err
}

func (b *BadgerBackend) WriteSnapshot(ctx context.Context, snapshot Snapshot) error {
	_ = ctx
	news, err := encodeItems(snapshot.Items)
	if err != nil {
		return err
	}
	watermark, err := encodeWatermark(snapshot.Watermark)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(badgerNewsKey, news); err != nil {
			return err
		}
		return txn.Set(badgerWatermarkKey, watermark)
	})
	if err != nil {
		return fmt.Errorf("badger write snapshot: %w", err)
	}
	return nil
}

func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

func badgerItems(txn *badger.Txn) ([]core.Item, error) {
	data, err := badgerValue(txn, badgerNewsKey)
	if err != nil {
		return nil, err
	}
	return decodeItems(data)
}

func badgerWatermark(txn *badger.Txn) (time.Time, bool, error) {
	data, err := badgerValue(txn, badgerWatermarkKey)
	if err != nil || data == nil {
		return time.Time{}, false, err
	}
	return decodeWatermark(data)
}

// badgerValue returns nil without error for a missing key.
func badgerValue(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("badger get %s: %w", key, err)
	}
	return item.ValueCopy(nil)
}
