package tilecachebolt

import (
	"context"
	"time"

	"github.com/boltdb/bolt"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/tilecache"
)

var bucketName = []byte("resources")

var _ tilecache.Cache = &BoltCache{}

// BoltCache keeps fetched resources in a single bolt database file, so they survive restarts
type BoltCache struct {
	db *bolt.DB
}

func NewCache(filePath string) (*BoltCache, errorsx.Error) {
	db, err := bolt.Open(filePath, 0600, &bolt.Options{Timeout: time.Second * 5})
	if err != nil {
		return nil, errorsx.Wrap(err, "filePath", filePath)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errorsx.Wrap(err, "filePath", filePath)
	}

	return &BoltCache{db}, nil
}

func (c *BoltCache) Get(ctx context.Context, key string) ([]byte, bool, errorsx.Error) {
	var data []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(bucketName).Get([]byte(key))
		if val == nil {
			return nil
		}
		// bolt values are only valid for the life of the transaction
		data = make([]byte, len(val))
		copy(data, val)
		return nil
	})
	if err != nil {
		return nil, false, errorsx.Wrap(err, "key", key)
	}

	return data, data != nil, nil
}

func (c *BoltCache) Put(ctx context.Context, key string, data []byte) errorsx.Error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), data)
	})
	if err != nil {
		return errorsx.Wrap(err, "key", key)
	}

	return nil
}

func (c *BoltCache) Close() errorsx.Error {
	return errorsx.Wrap(c.db.Close())
}
