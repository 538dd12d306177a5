// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package redis

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"storj.io/repostore/private/kvstore"
)

var (
	// Error is a redis error.
	Error = errs.Class("redis")

	mon = monkit.Package()
)

// Client is the entrypoint into Redis.
type Client struct {
	db *redis.Client
}

var _ kvstore.Store = (*Client)(nil)

// OpenClient returns a configured Client instance, verifying a successful connection to redis.
func OpenClient(ctx context.Context, address, password string, db int) (*Client, error) {
	client := &Client{
		db: redis.NewClient(&redis.Options{
			Addr:     address,
			Password: password,
			DB:       db,
		}),
	}

	// ping here to verify we are able to connect to redis with the initialized client.
	if err := client.db.Ping(ctx).Err(); err != nil {
		return nil, errs.Combine(Error.New("ping failed: %v", err), client.db.Close())
	}

	return client, nil
}

// OpenClientFrom returns a configured Client instance from a redis address, verifying a successful connection to redis.
func OpenClientFrom(ctx context.Context, address string) (*Client, error) {
	redisurl, err := url.Parse(address)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	if redisurl.Scheme != "redis" {
		return nil, Error.New("not a redis:// formatted address")
	}

	q := redisurl.Query()

	db := 0
	if s := q.Get("db"); s != "" {
		db, err = strconv.Atoi(s)
		if err != nil {
			return nil, Error.New("invalid db %q: %v", s, err)
		}
	}

	password := q.Get("password")
	if redisurl.User != nil {
		if p, ok := redisurl.User.Password(); ok {
			password = p
		}
	}

	return OpenClient(ctx, redisurl.Host, password, db)
}

// Get looks up the provided key from redis returning either an error or the result.
func (client *Client) Get(ctx context.Context, key kvstore.Key) (_ kvstore.Value, err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return nil, kvstore.ErrEmptyKey.New("")
	}
	return get(ctx, client.db, key)
}

// Put adds a value to the provided key in redis, returning an error on failure.
func (client *Client) Put(ctx context.Context, key kvstore.Key, value kvstore.Value) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return kvstore.ErrEmptyKey.New("")
	}
	return put(ctx, client.db, key, value)
}

// Delete deletes a key/value pair from redis, for a given the key.
func (client *Client) Delete(ctx context.Context, key kvstore.Key) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return kvstore.ErrEmptyKey.New("")
	}

	deleted, err := client.db.Del(ctx, key.String()).Result()
	if err != nil {
		return Error.New("delete error: %v", err)
	}
	if deleted == 0 {
		return kvstore.ErrKeyNotFound.New("%q", key)
	}
	return nil
}

// FlushDB deletes all keys in the currently selected DB.
func (client *Client) FlushDB(ctx context.Context) error {
	_, err := client.db.FlushDB(ctx).Result()
	return Error.Wrap(err)
}

// Close closes a redis client.
func (client *Client) Close() error {
	return Error.Wrap(client.db.Close())
}

// Range iterates over all items in unspecified order.
func (client *Client) Range(ctx context.Context, fn func(context.Context, kvstore.Key, kvstore.Value) error) (err error) {
	defer mon.Task()(&ctx)(&err)

	it := client.db.Scan(ctx, 0, "", 0).Iterator()

	seen := map[string]struct{}{}
	for it.Next(ctx) {
		key := it.Val()
		// redis may return duplicates
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		value, err := get(ctx, client.db, kvstore.Key(key))
		if kvstore.ErrKeyNotFound.Has(err) {
			// removed while scanning
			continue
		}
		if err != nil {
			return Error.Wrap(err)
		}

		if err := fn(ctx, kvstore.Key(key), value); err != nil {
			return err
		}
	}

	return Error.Wrap(it.Err())
}

// Apply atomically checks and applies the batch. Every key in the batch is
// watched, so a concurrent modification aborts the transaction.
func (client *Client) Apply(ctx context.Context, batch kvstore.Batch) (err error) {
	defer mon.Task()(&ctx)(&err)
	if err := batch.Verify(); err != nil {
		return err
	}
	if batch.IsEmpty() {
		return nil
	}

	txf := func(tx *redis.Tx) error {
		for _, check := range batch.Checks {
			current, err := get(ctx, tx, check.Key)
			found := true
			if kvstore.ErrKeyNotFound.Has(err) {
				found, err = false, nil
			}
			if err != nil {
				return err
			}
			if !check.Holds(current, found) {
				return kvstore.ErrValueChanged.New("%q", check.Key)
			}
		}

		if len(batch.Ops) == 0 {
			return nil
		}

		// runs only if the watched keys remain unchanged
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, op := range batch.Ops {
				if op.IsDelete() {
					pipe.Del(ctx, op.Key.String())
					continue
				}
				pipe.Set(ctx, op.Key.String(), []byte(op.Value), 0)
			}
			return nil
		})
		return err
	}

	err = client.db.Watch(ctx, txf, batch.Keys().Strings()...)
	if errors.Is(err, redis.TxFailedErr) {
		return kvstore.ErrValueChanged.New("transaction aborted")
	}
	if kvstore.ErrValueChanged.Has(err) {
		return err
	}
	return Error.Wrap(err)
}

func get(ctx context.Context, cmdable redis.Cmdable, key kvstore.Key) (_ kvstore.Value, err error) {
	defer mon.Task()(&ctx)(&err)
	value, err := cmdable.Get(ctx, string(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, kvstore.ErrKeyNotFound.New("%q", key)
	}
	if err != nil {
		return nil, Error.New("get error: %v", err)
	}
	if value == nil {
		value = kvstore.Value{}
	}
	return value, nil
}

func put(ctx context.Context, cmdable redis.Cmdable, key kvstore.Key, value kvstore.Value) (err error) {
	defer mon.Task()(&ctx)(&err)
	err = cmdable.Set(ctx, key.String(), []byte(value), 0).Err()
	if err != nil {
		return Error.New("put error: %v", err)
	}
	return nil
}
