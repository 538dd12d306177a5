// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package teststore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/spacemonkeygo/monkit/v3"

	"storj.io/repostore/private/kvstore"
)

var (
	errInternal = errors.New("internal error")

	mon = monkit.Package()
)

// Client implements in-memory key value store.
type Client struct {
	mu sync.Mutex

	Items []kvstore.Item
	// If ForceError is set, the next call will return an error and
	// the counter is decremented.
	ForceError int

	CallCount struct {
		Get    int
		Put    int
		Delete int
		Close  int
		Range  int
		Apply  int
	}

	version int
}

var _ kvstore.Store = (*Client)(nil)

// New creates a new in-memory key-value store.
func New() *Client { return &Client{} }

// indexOf finds index of key or where it could be inserted.
func (store *Client) indexOf(key kvstore.Key) (int, bool) {
	i := sort.Search(len(store.Items), func(k int) bool {
		return !store.Items[k].Key.Less(key)
	})

	if i >= len(store.Items) {
		return i, false
	}
	return i, store.Items[i].Key.Equal(key)
}

func (store *Client) locked() func() {
	store.mu.Lock()
	return store.mu.Unlock
}

func (store *Client) forcedError() bool {
	if store.ForceError > 0 {
		store.ForceError--
		return true
	}
	return false
}

// Put adds a value to store.
func (store *Client) Put(ctx context.Context, key kvstore.Key, value kvstore.Value) (err error) {
	defer mon.Task()(&ctx)(&err)
	defer store.locked()()

	store.version++
	store.CallCount.Put++
	if store.forcedError() {
		return errInternal
	}

	if key.IsZero() {
		return kvstore.ErrEmptyKey.New("")
	}

	store.put(key, value)
	return nil
}

func (store *Client) put(key kvstore.Key, value kvstore.Value) {
	if value == nil {
		value = kvstore.Value{}
	}

	keyIndex, found := store.indexOf(key)
	if found {
		kv := &store.Items[keyIndex]
		kv.Value = kvstore.CloneValue(value)
		return
	}

	store.Items = append(store.Items, kvstore.Item{})
	copy(store.Items[keyIndex+1:], store.Items[keyIndex:])
	store.Items[keyIndex] = kvstore.Item{
		Key:   kvstore.CloneKey(key),
		Value: kvstore.CloneValue(value),
	}
}

// Get gets a value to store.
func (store *Client) Get(ctx context.Context, key kvstore.Key) (_ kvstore.Value, err error) {
	defer mon.Task()(&ctx)(&err)
	defer store.locked()()

	store.CallCount.Get++

	if store.forcedError() {
		return nil, errInternal
	}

	if key.IsZero() {
		return nil, kvstore.ErrEmptyKey.New("")
	}

	keyIndex, found := store.indexOf(key)
	if !found {
		return nil, kvstore.ErrKeyNotFound.New("%q", key)
	}

	return kvstore.CloneValue(store.Items[keyIndex].Value), nil
}

// Delete deletes key and the value.
func (store *Client) Delete(ctx context.Context, key kvstore.Key) (err error) {
	defer mon.Task()(&ctx)(&err)
	defer store.locked()()

	store.version++
	store.CallCount.Delete++

	if store.forcedError() {
		return errInternal
	}

	if key.IsZero() {
		return kvstore.ErrEmptyKey.New("")
	}

	if !store.delete(key) {
		return kvstore.ErrKeyNotFound.New("%q", key)
	}
	return nil
}

func (store *Client) delete(key kvstore.Key) bool {
	keyIndex, found := store.indexOf(key)
	if !found {
		return false
	}

	copy(store.Items[keyIndex:], store.Items[keyIndex+1:])
	store.Items = store.Items[:len(store.Items)-1]
	return true
}

// Range iterates over all items in unspecified order.
func (store *Client) Range(ctx context.Context, fn func(context.Context, kvstore.Key, kvstore.Value) error) (err error) {
	defer mon.Task()(&ctx)(&err)

	store.mu.Lock()
	store.CallCount.Range++
	if store.forcedError() {
		store.mu.Unlock()
		return errInternal
	}
	items := make(kvstore.Items, len(store.Items))
	for i, item := range store.Items {
		items[i] = kvstore.Item{Key: kvstore.CloneKey(item.Key), Value: kvstore.CloneValue(item.Value)}
	}
	store.mu.Unlock()

	for _, item := range items {
		if err := fn(ctx, item.Key, item.Value); err != nil {
			return err
		}
	}
	return nil
}

// Apply atomically checks and applies the batch.
func (store *Client) Apply(ctx context.Context, batch kvstore.Batch) (err error) {
	defer mon.Task()(&ctx)(&err)
	defer store.locked()()

	store.CallCount.Apply++

	if store.forcedError() {
		return errInternal
	}
	if err := batch.Verify(); err != nil {
		return err
	}

	for _, check := range batch.Checks {
		var current kvstore.Value
		keyIndex, found := store.indexOf(check.Key)
		if found {
			current = store.Items[keyIndex].Value
		}
		if !check.Holds(current, found) {
			return kvstore.ErrValueChanged.New("%q", check.Key)
		}
	}

	if len(batch.Ops) > 0 {
		store.version++
	}
	for _, op := range batch.Ops {
		if op.IsDelete() {
			store.delete(op.Key)
			continue
		}
		store.put(op.Key, op.Value)
	}
	return nil
}

// Version returns the number of mutations applied so far.
func (store *Client) Version() int {
	defer store.locked()()
	return store.version
}

// Close closes the store.
func (store *Client) Close() error {
	defer store.locked()()

	store.CallCount.Close++
	if store.forcedError() {
		return errInternal
	}
	return nil
}
