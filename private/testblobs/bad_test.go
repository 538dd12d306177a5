// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package testblobs_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/common/testcontext"
	"storj.io/repostore/blobstore"
	"storj.io/repostore/blobstore/filestore"
	"storj.io/repostore/private/testblobs"
)

func TestBadBlobs(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	log := zaptest.NewLogger(t)
	store, err := filestore.NewAt(log, ctx.Dir("store"), filestore.DefaultConfig)
	require.NoError(t, err)

	bad := testblobs.NewBadBlobs(log, store)
	defer ctx.Check(bad.Close)

	failure := errors.New("disk on fire")

	bad.SetCommitError(failure)
	writer, err := bad.Create(ctx)
	require.NoError(t, err)
	_, err = writer.Write([]byte("data"))
	require.NoError(t, err)
	_, err = writer.Commit(ctx)
	require.ErrorIs(t, err, failure)

	_, err = bad.Stat(ctx, blobstore.RefOf([]byte("data")))
	require.True(t, blobstore.ErrNotFound.Has(err))

	bad.SetCommitError(nil)
	bad.SetError(failure)
	_, err = bad.Create(ctx)
	require.ErrorIs(t, err, failure)
	_, err = bad.Open(ctx, blobstore.RefOf([]byte("data")))
	require.ErrorIs(t, err, failure)

	bad.SetError(nil)
}
