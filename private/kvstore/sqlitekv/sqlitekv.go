// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package sqlitekv

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the sqlite driver

	"storj.io/repostore/private/dbutil"
	"storj.io/repostore/private/dbutil/txutil"
	"storj.io/repostore/private/kvstore"
	"storj.io/repostore/private/migrate"
)

var (
	// Error is the default sqlitekv errs class.
	Error = errs.Class("sqlitekv")

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
					key   BLOB NOT NULL PRIMARY KEY,
					value BLOB NOT NULL
				) WITHOUT ROWID
			`},
		},
	},
}

// Store is a kvstore.Store backed by a sqlite database file.
type Store struct {
	db *sql.DB
}

var _ kvstore.Store = (*Store)(nil)

// Open opens the database at path, ":memory:" for a private in-memory database.
func Open(ctx context.Context, log *zap.Logger, path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if path == ":memory:" {
		// every connection would otherwise get its own database
		db.SetMaxOpenConns(1)
	}

	if err := migration.Run(ctx, log, dbutil.SQLite, db); err != nil {
		return nil, errs.Combine(Error.Wrap(err), db.Close())
	}
	return &Store{db: db}, nil
}

// dsn adds the pragmas every connection needs. Write transactions take the
// lock on begin so concurrent writers wait on busy_timeout instead of failing
// to upgrade a read lock.
func dsn(path string) string {
	pragmas := "_pragma=busy_timeout(5000)&_txlock=immediate"
	if path != ":memory:" {
		pragmas += "&_pragma=journal_mode(WAL)"
	}
	if strings.Contains(path, "?") {
		return path + "&" + pragmas
	}
	return path + "?" + pragmas
}

// Put sets the value for the provided key.
func (store *Store) Put(ctx context.Context, key kvstore.Key, value kvstore.Value) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return kvstore.ErrEmptyKey.New("")
	}
	_, err = store.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, []byte(key), nonNil(value))
	return Error.Wrap(err)
}

// Get looks up the provided key and returns its value (or an error).
func (store *Store) Get(ctx context.Context, key kvstore.Key) (_ kvstore.Value, err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return nil, kvstore.ErrEmptyKey.New("")
	}
	return get(ctx, store.db, key)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func get(ctx context.Context, db queryer, key kvstore.Key) (kvstore.Value, error) {
	var value []byte
	err := db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, []byte(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kvstore.ErrKeyNotFound.New("%q", key)
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return nonNil(value), nil
}

// Delete deletes the given key and its associated value.
func (store *Store) Delete(ctx context.Context, key kvstore.Key) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return kvstore.ErrEmptyKey.New("")
	}

	result, err := store.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, []byte(key))
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
func (store *Store) Range(ctx context.Context, fn func(context.Context, kvstore.Key, kvstore.Value) error) (err error) {
	defer mon.Task()(&ctx)(&err)

	// rows are collected first, fn may call back into the store and an
	// in-memory database only has a single connection.
	items, err := func() (items kvstore.Items, err error) {
		rows, err := store.db.QueryContext(ctx, `SELECT key, value FROM kv ORDER BY key`)
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

// Apply checks and applies the batch in a single write transaction.
func (store *Store) Apply(ctx context.Context, batch kvstore.Batch) (err error) {
	defer mon.Task()(&ctx)(&err)
	if err := batch.Verify(); err != nil {
		return err
	}
	if batch.IsEmpty() {
		return nil
	}

	err = txutil.WithTx(ctx, store.db, nil, func(ctx context.Context, tx *sql.Tx) error {
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
				_, err = tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, []byte(op.Key))
			} else {
				_, err = tx.ExecContext(ctx, `
					INSERT INTO kv (key, value) VALUES (?, ?)
					ON CONFLICT (key) DO UPDATE SET value = excluded.value
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
	case txutil.IsRetryable(err):
		return kvstore.ErrValueChanged.Wrap(err)
	default:
		return Error.Wrap(err)
	}
}

// Close closes the database.
func (store *Store) Close() error {
	return Error.Wrap(store.db.Close())
}

func nonNil(value []byte) kvstore.Value {
	if value == nil {
		return kvstore.Value{}
	}
	return value
}
