// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package testsuite

import (
	"bytes"
	"context"
	"sort"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"storj.io/common/testcontext"
	"storj.io/repostore/private/kvstore"
)

// RunTests runs common kvstore.Store tests.
func RunTests(t *testing.T, store kvstore.Store) {
	t.Run("CRUD", func(t *testing.T) { testCRUD(t, store) })
	t.Run("Constraints", func(t *testing.T) { testConstraints(t, store) })
	t.Run("Range", func(t *testing.T) { testRange(t, store) })
	t.Run("Apply", func(t *testing.T) { testApply(t, store) })
	t.Run("CompareAndSwap", func(t *testing.T) { testCompareAndSwap(t, store) })
	t.Run("ConcurrentApply", func(t *testing.T) { testConcurrentApply(t, store) })
}

func testCRUD(t *testing.T, store kvstore.Store) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	items := kvstore.Items{
		newItem("\x00", "\x00"),
		newItem("a/b", "\x01\x00"),
		newItem("a\\b", "\xFF"),
		newItem("full/path/1", "\x00\xFF\xFFz"),
		newItem("full/path/2", "\x00\xFF\xFFz"),
		newItem("full/path/3", "\x00\xFF\xFFz"),
		newItem("öö", "üü"),
	}
	defer cleanupItems(t, ctx, store, items)

	for _, item := range items {
		require.NoError(t, store.Put(ctx, item.Key, item.Value), "put %q", item.Key)
	}

	for _, item := range items {
		value, err := store.Get(ctx, item.Key)
		require.NoError(t, err, "get %q", item.Key)
		require.True(t, bytes.Equal(value, item.Value), "invalid value for %q", item.Key)
	}

	newValue := kvstore.Value("new-value")
	for _, item := range items {
		require.NoError(t, store.Put(ctx, item.Key, newValue))
		value, err := store.Get(ctx, item.Key)
		require.NoError(t, err)
		require.Equal(t, newValue, value)
	}

	for _, item := range items {
		require.NoError(t, store.Delete(ctx, item.Key))
		_, err := store.Get(ctx, item.Key)
		require.True(t, kvstore.ErrKeyNotFound.Has(err), "expected not found for %q, got %v", item.Key, err)
	}

	err := store.Delete(ctx, kvstore.Key("missing"))
	require.True(t, kvstore.ErrKeyNotFound.Has(err), "deleting missing key: %v", err)
}

func testConstraints(t *testing.T, store kvstore.Store) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	t.Run("Put Empty", func(t *testing.T) {
		err := store.Put(ctx, nil, kvstore.Value("xyz"))
		require.True(t, kvstore.ErrEmptyKey.Has(err), "putting empty key should fail: %v", err)
	})

	t.Run("Get Empty", func(t *testing.T) {
		_, err := store.Get(ctx, nil)
		require.True(t, kvstore.ErrEmptyKey.Has(err), "getting empty key should fail: %v", err)
	})

	t.Run("Apply Empty", func(t *testing.T) {
		err := store.Apply(ctx, kvstore.Batch{Ops: []kvstore.Op{{Key: nil, Value: kvstore.Value("x")}}})
		require.True(t, kvstore.ErrEmptyKey.Has(err), "applying empty key should fail: %v", err)
	})
}

func testRange(t *testing.T, store kvstore.Store) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	items := kvstore.Items{
		newItem("range/a", "1"),
		newItem("range/b", "2"),
		newItem("range/c/d", "3"),
	}
	defer cleanupItems(t, ctx, store, items)

	for _, item := range items {
		require.NoError(t, store.Put(ctx, item.Key, item.Value))
	}

	var got kvstore.Items
	err := store.Range(ctx, func(ctx context.Context, key kvstore.Key, value kvstore.Value) error {
		if bytes.HasPrefix(key, []byte("range/")) {
			got = append(got, newItem(string(key), string(value)))
		}
		return nil
	})
	require.NoError(t, err)

	sort.Sort(got)
	require.Equal(t, items, got)
}

func testApply(t *testing.T, store kvstore.Store) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	a, b := kvstore.Key("apply/a"), kvstore.Key("apply/b")
	defer cleanupItems(t, ctx, store, kvstore.Items{{Key: a}, {Key: b}})

	// create both keys, requiring both to be absent
	err := store.Apply(ctx, kvstore.Batch{
		Checks: []kvstore.Check{{Key: a}, {Key: b}},
		Ops:    []kvstore.Op{{Key: a, Value: kvstore.Value("a1")}, {Key: b, Value: kvstore.Value("b1")}},
	})
	require.NoError(t, err)

	// a failing check must not write anything
	err = store.Apply(ctx, kvstore.Batch{
		Checks: []kvstore.Check{{Key: a, Value: kvstore.Value("a1")}, {Key: b}},
		Ops:    []kvstore.Op{{Key: a, Value: kvstore.Value("a2")}},
	})
	require.True(t, kvstore.ErrValueChanged.Has(err), "expected value changed, got %v", err)

	value, err := store.Get(ctx, a)
	require.NoError(t, err)
	require.Equal(t, kvstore.Value("a1"), value)

	// update one, delete the other
	err = store.Apply(ctx, kvstore.Batch{
		Checks: []kvstore.Check{{Key: a, Value: kvstore.Value("a1")}, {Key: b, Value: kvstore.Value("b1")}},
		Ops:    []kvstore.Op{{Key: a, Value: kvstore.Value("a2")}, {Key: b}},
	})
	require.NoError(t, err)

	value, err = store.Get(ctx, a)
	require.NoError(t, err)
	require.Equal(t, kvstore.Value("a2"), value)

	_, err = store.Get(ctx, b)
	require.True(t, kvstore.ErrKeyNotFound.Has(err))

	// checks without ops are a consistent read
	require.NoError(t, store.Apply(ctx, kvstore.Batch{
		Checks: []kvstore.Check{{Key: a, Value: kvstore.Value("a2")}, {Key: b}},
	}))
}

func testCompareAndSwap(t *testing.T, store kvstore.Store) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	key := kvstore.Key("cas")
	defer cleanupItems(t, ctx, store, kvstore.Items{{Key: key}})

	require.NoError(t, kvstore.CompareAndSwap(ctx, store, key, nil, kvstore.Value("v1")))

	err := kvstore.CompareAndSwap(ctx, store, key, nil, kvstore.Value("v2"))
	require.True(t, kvstore.ErrValueChanged.Has(err))

	err = kvstore.CompareAndSwap(ctx, store, key, kvstore.Value("other"), kvstore.Value("v2"))
	require.True(t, kvstore.ErrValueChanged.Has(err))

	require.NoError(t, kvstore.CompareAndSwap(ctx, store, key, kvstore.Value("v1"), kvstore.Value("v2")))
	require.NoError(t, kvstore.CompareAndSwap(ctx, store, key, kvstore.Value("v2"), nil))

	_, err = store.Get(ctx, key)
	require.True(t, kvstore.ErrKeyNotFound.Has(err))
}

// testConcurrentApply creates the same key from many goroutines; exactly one
// of them must win.
func testConcurrentApply(t *testing.T, store kvstore.Store) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	key := kvstore.Key("concurrent")
	defer cleanupItems(t, ctx, store, kvstore.Items{{Key: key}})

	const writers = 8
	var wins, conflicts int64

	var group errgroup.Group
	for i := 0; i < writers; i++ {
		value := kvstore.Value("writer-" + strconv.Itoa(i))
		group.Go(func() error {
			err := store.Apply(ctx, kvstore.Batch{
				Checks: []kvstore.Check{{Key: key}},
				Ops:    []kvstore.Op{{Key: key, Value: value}},
			})
			switch {
			case err == nil:
				atomic.AddInt64(&wins, 1)
				return nil
			case kvstore.ErrValueChanged.Has(err):
				atomic.AddInt64(&conflicts, 1)
				return nil
			default:
				return err
			}
		})
	}
	require.NoError(t, group.Wait())

	require.EqualValues(t, 1, wins)
	require.EqualValues(t, writers-1, conflicts)
}
