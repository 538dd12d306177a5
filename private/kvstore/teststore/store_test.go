// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package teststore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"storj.io/common/testcontext"
	"storj.io/repostore/private/kvstore"
	"storj.io/repostore/private/kvstore/testsuite"
)

func TestSuite(t *testing.T) {
	testsuite.RunTests(t, New())
}

func TestForceError(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := New()
	store.ForceError = 1

	err := store.Put(ctx, kvstore.Key("a"), kvstore.Value("b"))
	require.Error(t, err)
	require.Equal(t, 0, store.Version()-1)

	require.NoError(t, store.Put(ctx, kvstore.Key("a"), kvstore.Value("b")))
	require.Equal(t, 2, store.CallCount.Put)
}

func TestVersion(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := New()
	require.NoError(t, store.Apply(ctx, kvstore.Batch{
		Checks: []kvstore.Check{{Key: kvstore.Key("a")}},
	}))
	require.Equal(t, 0, store.Version())

	require.NoError(t, kvstore.CompareAndSwap(ctx, store, kvstore.Key("a"), nil, kvstore.Value("1")))
	require.Equal(t, 1, store.Version())
}
