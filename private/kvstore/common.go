// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package kvstore

import (
	"bytes"
	"context"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
)

var mon = monkit.Package()

var (
	// ErrKeyNotFound used when something doesn't exist.
	ErrKeyNotFound = errs.Class("key not found")

	// ErrEmptyKey is returned when an empty key is used in Put, Delete or Apply.
	ErrEmptyKey = errs.Class("empty key")

	// ErrValueChanged is returned when a checked key no longer holds the expected value in Apply.
	ErrValueChanged = errs.Class("value changed")
)

// Key is the type for the keys in a `Store`.
type Key []byte

// Value is the type for the values in a `Store`.
type Value []byte

// Keys is the type for a slice of keys in a `Store`.
type Keys []Key

// Items keeps all Item.
type Items []Item

// Item is a single key value pair.
type Item struct {
	Key   Key
	Value Value
}

// Store describes key/value stores like redis and boltdb.
type Store interface {
	// Put adds a value to store.
	Put(context.Context, Key, Value) error
	// Get gets a value to store.
	Get(context.Context, Key) (Value, error)
	// Delete deletes key and the value.
	Delete(context.Context, Key) error
	// Range iterates over all items in unspecified order.
	// The Key and Value are valid only for the duration of callback.
	Range(ctx context.Context, fn func(context.Context, Key, Value) error) error
	// Apply atomically verifies every check of the batch and, when all of
	// them hold, applies every operation. Otherwise nothing is written and
	// ErrValueChanged is returned.
	Apply(ctx context.Context, batch Batch) error
	// Close closes the store.
	Close() error
}

// IsZero returns true if the value struct is a zero value.
func (value Value) IsZero() bool {
	return len(value) == 0
}

// IsZero returns true if the key struct is a zero value.
func (key Key) IsZero() bool {
	return len(key) == 0
}

// String implements the Stringer interface.
func (key Key) String() string { return string(key) }

// Strings returns everything as strings.
func (keys Keys) Strings() []string {
	strs := make([]string, 0, len(keys))
	for _, key := range keys {
		strs = append(strs, string(key))
	}
	return strs
}

// Len is the number of elements in the collection.
func (items Items) Len() int { return len(items) }

// Less reports whether the element with
// index i should sort before the element with index j.
func (items Items) Less(i, k int) bool { return items[i].Less(items[k]) }

// Swap swaps the elements with indexes i and j.
func (items Items) Swap(i, k int) { items[i], items[k] = items[k], items[i] }

// Less returns whether item should be sorted before b.
func (item Item) Less(b Item) bool { return item.Key.Less(b.Key) }

// Less returns whether key should be sorted before b.
func (key Key) Less(b Key) bool { return bytes.Compare([]byte(key), []byte(b)) < 0 }

// Equal returns whether key and b are equal.
func (key Key) Equal(b Key) bool { return bytes.Equal([]byte(key), []byte(b)) }

// CloneKey creates a copy of key.
func CloneKey(key Key) Key { return append(key[:0:0], key...) }

// CloneValue creates a copy of value. A nil value stays nil.
func CloneValue(value Value) Value {
	if value == nil {
		return nil
	}
	return append(value[:0:0], value...)
}
