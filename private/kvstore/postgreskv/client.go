// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package postgreskv

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/lib/pq" // registers the postgres driver
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/repostore/private/dbutil"
	"storj.io/repostore/private/dbutil/pgutil"
	"storj.io/repostore/private/dbutil/txutil"
	"storj.io/repostore/private/kvstore"
	"storj.io/repostore/private/migrate"
)

var (
	// Error is the default postgreskv errs class.
	Error = errs.Class("postgreskv")

	mon = monkit.Package()
)

// migration creates and upgrades the kv table.
var migration = &migrate.Migration{
	Table: "kv_versions",
	Steps: []*migrate.Step{
		{
			Description: "initial setup",
			Version:     0,
			SQL: []string{`
				CREATE TABLE IF NOT EXISTS kv (
					key   BYTEA NOT NULL PRIMARY KEY,
					value BYTEA NOT NULL
				)
			`},
		},
	},
}

// Client is the entrypoint into a postgreskv data store.
type Client struct {
	db *sql.DB
}

var _ kvstore.Store = (*Client)(nil)

// Open connects to dbURL and creates the table when necessary.
func Open(ctx context.Context, log *zap.Logger, dbURL string) (*Client, error) {
	db, err := sql.Open("postgres", pgutil.CheckApplicationName(dbURL, "repostore"))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return openDB(ctx, log, db)
}

// Wrap uses an already open database, creating the table when necessary.
func Wrap(ctx context.Context, log *zap.Logger, db *sql.DB) (*Client, error) {
	if err := migration.Run(ctx, log, dbutil.Postgres, db); err != nil {
		return nil, Error.Wrap(err)
	}
	return &Client{db: db}, nil
}

func openDB(ctx context.Context, log *zap.Logger, db *sql.DB) (*Client, error) {
	client, err := Wrap(ctx, log, db)
	if err != nil {
		return nil, errs.Combine(err, db.Close())
	}
	return client, nil
}

// Put sets the value for the provided key.
func (client *Client) Put(ctx context.Context, key kvstore.Key, value kvstore.Value) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return kvstore.ErrEmptyKey.New("")
	}
	_, err = client.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES ($1::BYTEA, $2::BYTEA)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, []byte(key), nonNil(value))
	return Error.Wrap(err)
}

// Get looks up the provided key and returns its value (or an error).
func (client *Client) Get(ctx context.Context, key kvstore.Key) (_ kvstore.Value, err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return nil, kvstore.ErrEmptyKey.New("")
	}
	return get(ctx, client.db, key)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func get(ctx context.Context, db queryer, key kvstore.Key) (kvstore.Value, error) {
	var value []byte
	err := db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = $1::BYTEA`, []byte(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kvstore.ErrKeyNotFound.New("%q", key)
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return nonNil(value), nil
}

// Delete deletes the given key and its associated value.
func (client *Client) Delete(ctx context.Context, key kvstore.Key) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return kvstore.ErrEmptyKey.New("")
	}

	result, err := client.db.ExecContext(ctx, `DELETE FROM kv WHERE key = $1::BYTEA`, []byte(key))
	if err != nil {
		return Error.Wrap(err)
	}
	numRows, err := result.RowsAffected()
	if err != nil {
		return Error.Wrap(err)
	}
	if numRows == 0 {
		return kvstore.ErrKeyNotFound.New("%q", key)
	}
	return nil
}

// Range iterates over all items in key order.
func (client *Client) Range(ctx context.Context, fn func(context.Context, kvstore.Key, kvstore.Value) error) (err error) {
	defer mon.Task()(&ctx)(&err)

	items, err := func() (items kvstore.Items, err error) {
		rows, err := client.db.QueryContext(ctx, `SELECT key, value FROM kv ORDER BY key`)
		if err != nil {
			return nil, err
		}
		defer func() { err = errs.Combine(err, rows.Close()) }()

		for rows.Next() {
			var key, value []byte
			if err := rows.Scan(&key, &value); err != nil {
				return nil, err
			}
			items = append(items, kvstore.Item{Key: key, Value: value})
		}
		return items, rows.Err()
	}()
	if err != nil {
		return Error.Wrap(err)
	}

	for _, item := range items {
		if err := fn(ctx, item.Key, nonNil(item.Value)); err != nil {
			return err
		}
	}
	return nil
}

// Apply checks and applies the batch in a serializable transaction.
func (client *Client) Apply(ctx context.Context, batch kvstore.Batch) (err error) {
	defer mon.Task()(&ctx)(&err)
	if err := batch.Verify(); err != nil {
		return err
	}
	if batch.IsEmpty() {
		return nil
	}

	err = txutil.WithTx(ctx, client.db, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(ctx context.Context, tx *sql.Tx) error {
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

		for _, op := range batch.Ops {
			var err error
			if op.IsDelete() {
				_, err = tx.ExecContext(ctx, `DELETE FROM kv WHERE key = $1::BYTEA`, []byte(op.Key))
			} else {
				_, err = tx.ExecContext(ctx, `
					INSERT INTO kv (key, value) VALUES ($1::BYTEA, $2::BYTEA)
					ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
				`, []byte(op.Key), nonNil(op.Value))
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	switch {
	case err == nil:
		return nil
	case kvstore.ErrValueChanged.Has(err):
		return err
	case txutil.IsRetryable(err), pgutil.IsConstraintError(err):
		// ran out of retries or raced on an insert
		return kvstore.ErrValueChanged.Wrap(err)
	default:
		return Error.Wrap(err)
	}
}

// Close closes the client.
func (client *Client) Close() error {
	return Error.Wrap(client.db.Close())
}

func nonNil(value []byte) kvstore.Value {
	if value == nil {
		return kvstore.Value{}
	}
	return value
}
