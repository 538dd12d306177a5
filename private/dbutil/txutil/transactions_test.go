// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package txutil_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/errs"
	_ "modernc.org/sqlite"

	"storj.io/common/testcontext"
	"storj.io/repostore/private/dbutil/txutil"
)

func TestIsRetryable(t *testing.T) {
	require.False(t, txutil.IsRetryable(nil))
	require.False(t, txutil.IsRetryable(errors.New("boom")))
	require.True(t, txutil.IsRetryable(&pq.Error{Code: "40001"}))
	require.True(t, txutil.IsRetryable(errs.Wrap(&pq.Error{Code: "40001"})))
	require.False(t, txutil.IsRetryable(&pq.Error{Code: "23505"}))
}

func TestWithTx(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	db, err := sql.Open("sqlite", ctx.File("tx.db"))
	require.NoError(t, err)
	defer ctx.Check(db.Close)

	_, err = db.ExecContext(ctx, `CREATE TABLE counter (n INTEGER NOT NULL)`)
	require.NoError(t, err)

	err = txutil.WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO counter (n) VALUES (1)`)
		return err
	})
	require.NoError(t, err)

	// a failing callback rolls back
	failure := errors.New("failure")
	calls := 0
	err = txutil.WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
		calls++
		if _, err := tx.ExecContext(ctx, `INSERT INTO counter (n) VALUES (2)`); err != nil {
			return err
		}
		return failure
	})
	require.ErrorIs(t, err, failure)
	require.Equal(t, 1, calls)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT count(*) FROM counter`).Scan(&count))
	require.Equal(t, 1, count)

	// contention errors are retried
	calls = 0
	err = txutil.WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
		calls++
		if calls < 3 {
			return &pq.Error{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}
