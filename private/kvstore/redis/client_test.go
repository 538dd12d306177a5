// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package redis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"storj.io/common/testcontext"
	"storj.io/repostore/private/kvstore"
	"storj.io/repostore/private/kvstore/testsuite"
	"storj.io/repostore/private/testredis"
)

func TestSuite(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	redis, err := testredis.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { require.NoError(t, redis.Close()) }()

	client, err := OpenClient(ctx, redis.Addr(), "", 1)
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Check(client.Close)

	testsuite.RunTests(t, client)
}

func TestOpenClientFrom(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	redis, err := testredis.Start(ctx)
	require.NoError(t, err)
	defer func() { require.NoError(t, redis.Close()) }()

	client, err := OpenClientFrom(ctx, redis.URL(2))
	require.NoError(t, err)
	defer ctx.Check(client.Close)

	require.NoError(t, client.Put(ctx, kvstore.Key("k"), kvstore.Value("v")))
	value, err := client.Get(ctx, kvstore.Key("k"))
	require.NoError(t, err)
	require.Equal(t, kvstore.Value("v"), value)

	require.NoError(t, client.FlushDB(ctx))
	_, err = client.Get(ctx, kvstore.Key("k"))
	require.True(t, kvstore.ErrKeyNotFound.Has(err))

	_, err = OpenClientFrom(ctx, "http://"+redis.Addr())
	require.Error(t, err)
}

func TestInvalidConnection(t *testing.T) {
	_, err := OpenClient(t.Context(), "", "", 1)
	if err == nil {
		t.Fatal("expected connection error")
	}
}
