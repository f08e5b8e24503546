package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/celerix-dev/celerix-assist/pkg/kv"
	bolt "go.etcd.io/bbolt"
)

var slotBucket = []byte("slots")

// BoltStore keeps every slot in a single bbolt file.
// Each write is its own bbolt transaction.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the bbolt file at path.
func OpenBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create bolt dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(slotBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (b *BoltStore) Get(key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(slotBucket).Get([]byte(key))
		if v == nil {
			return kv.ErrKeyNotFound
		}
		// v is only valid inside the transaction
		out = cloneBytes(v)
		return nil
	})
	return out, err
}

func (b *BoltStore) Set(key string, value []byte) error {
	if !kv.ValidKey(key) {
		return kv.ErrInvalidKey
	}
	if value == nil {
		value = []byte{}
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(slotBucket).Put([]byte(key), value)
	})
}

func (b *BoltStore) Remove(key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(slotBucket).Delete([]byte(key))
	})
}

// Keys returns every stored key in byte order.
func (b *BoltStore) Keys() ([]string, error) {
	var keys []string
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(slotBucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

func (b *BoltStore) Close() error {
	return b.db.Close()
}
