// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package connect_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"storj.io/common/testcontext"
	"storj.io/repostore/private/kvstore"
	"storj.io/repostore/private/kvstore/connect"
	"storj.io/repostore/private/kvstore/storelogger"
	"storj.io/repostore/private/testredis"
)

func TestOpen(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	redis, err := testredis.Start(ctx)
	require.NoError(t, err)
	defer func() { require.NoError(t, redis.Close()) }()

	for _, url := range []string{
		"memory://",
		"bolt://" + ctx.File("bolt.db"),
		"sqlite://" + ctx.File("sqlite.db"),
		redis.URL(0),
	} {
		store, err := connect.Open(ctx, zap.NewNop(), url)
		require.NoError(t, err, url)

		require.NoError(t, store.Put(ctx, kvstore.Key("k"), kvstore.Value("v")), url)
		value, err := store.Get(ctx, kvstore.Key("k"))
		require.NoError(t, err, url)
		require.Equal(t, kvstore.Value("v"), value, url)

		require.NoError(t, store.Close(), url)
	}
}

func TestOpenLogged(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store, err := connect.Open(ctx, zaptest.NewLogger(t), "memory://")
	require.NoError(t, err)
	defer ctx.Check(store.Close)

	_, ok := store.(*storelogger.Logger)
	require.True(t, ok)
}

func TestOpenInvalid(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	for _, url := range []string{"", "memory", "ftp://somewhere"} {
		_, err := connect.Open(ctx, zap.NewNop(), url)
		require.Error(t, err, url)
		require.True(t, connect.Error.Has(err), url)
	}
}
