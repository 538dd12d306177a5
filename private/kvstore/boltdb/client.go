// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package boltdb

import (
	"context"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	bolt "go.etcd.io/bbolt"

	"storj.io/repostore/private/kvstore"
)

var mon = monkit.Package()

// Error is the default boltdb errs class.
var Error = errs.Class("boltdb")

// Client is the entrypoint into a bolt data store.
type Client struct {
	db     *bolt.DB
	Path   string
	Bucket []byte
}

var _ kvstore.Store = (*Client)(nil)

const (
	// fileMode sets permissions so owner can read and write.
	fileMode       = 0600
	defaultTimeout = 1 * time.Second
)

// New instantiates a new BoltDB client given db file path, and a bucket name.
func New(path, bucket string) (*Client, error) {
	db, err := bolt.Open(path, fileMode, &bolt.Options{Timeout: defaultTimeout})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	err = Error.Wrap(db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}))
	if err != nil {
		return nil, errs.Combine(err, Error.Wrap(db.Close()))
	}

	return &Client{
		db:     db,
		Path:   path,
		Bucket: []byte(bucket),
	}, nil
}

func (client *Client) update(fn func(*bolt.Bucket) error) error {
	return Error.Wrap(client.db.Update(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(client.Bucket))
	}))
}

func (client *Client) view(fn func(*bolt.Bucket) error) error {
	return Error.Wrap(client.db.View(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(client.Bucket))
	}))
}

// Put adds a key/value to boltDB in a batch, where boltDB commits the batch to disk every
// 1000 operations or 10ms, whichever is first. The MaxBatchDelay are using default settings.
func (client *Client) Put(ctx context.Context, key kvstore.Key, value kvstore.Value) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return kvstore.ErrEmptyKey.New("")
	}

	return Error.Wrap(client.db.Batch(func(tx *bolt.Tx) error {
		return tx.Bucket(client.Bucket).Put(key, nonNil(value))
	}))
}

// Get looks up the provided key from boltdb returning either an error or the result.
func (client *Client) Get(ctx context.Context, key kvstore.Key) (_ kvstore.Value, err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return nil, kvstore.ErrEmptyKey.New("")
	}

	var value kvstore.Value
	err = client.view(func(bucket *bolt.Bucket) error {
		data := bucket.Get([]byte(key))
		if data == nil {
			return kvstore.ErrKeyNotFound.New("%q", key)
		}
		value = kvstore.Value(append([]byte{}, data...))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Delete deletes a key/value pair from boltdb, for a given the key.
func (client *Client) Delete(ctx context.Context, key kvstore.Key) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return kvstore.ErrEmptyKey.New("")
	}

	return client.update(func(bucket *bolt.Bucket) error {
		if bucket.Get(key) == nil {
			return kvstore.ErrKeyNotFound.New("%q", key)
		}
		return bucket.Delete(key)
	})
}

// Range iterates over all items in key order.
func (client *Client) Range(ctx context.Context, fn func(context.Context, kvstore.Key, kvstore.Value) error) (err error) {
	defer mon.Task()(&ctx)(&err)

	var items kvstore.Items
	err = client.view(func(bucket *bolt.Bucket) error {
		return bucket.ForEach(func(key, value []byte) error {
			items = append(items, kvstore.Item{
				Key:   kvstore.CloneKey(key),
				Value: kvstore.Value(append([]byte{}, value...)),
			})
			return nil
		})
	})
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := fn(ctx, item.Key, item.Value); err != nil {
			return err
		}
	}
	return nil
}

// Apply checks and applies the batch inside a single read-write transaction.
// bolt allows only one writer at a time, so the checks cannot go stale.
func (client *Client) Apply(ctx context.Context, batch kvstore.Batch) (err error) {
	defer mon.Task()(&ctx)(&err)
	if err := batch.Verify(); err != nil {
		return err
	}

	return client.update(func(bucket *bolt.Bucket) error {
		for _, check := range batch.Checks {
			current := bucket.Get(check.Key)
			if !check.Holds(current, current != nil) {
				return kvstore.ErrValueChanged.New("%q", check.Key)
			}
		}

		for _, op := range batch.Ops {
			if op.IsDelete() {
				if err := bucket.Delete(op.Key); err != nil {
					return err
				}
				continue
			}
			if err := bucket.Put(op.Key, nonNil(op.Value)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes a BoltDB client.
func (client *Client) Close() error {
	return Error.Wrap(client.db.Close())
}

func nonNil(value kvstore.Value) []byte {
	if value == nil {
		return []byte{}
	}
	return value
}
