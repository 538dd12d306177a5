// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package kvstore

import (
	"bytes"
	"context"
)

// Check asserts the current value of a key.
//
// A nil Value asserts that the key does not exist.
type Check struct {
	Key   Key
	Value Value
}

// Holds returns whether current, as read from the store, satisfies the check.
// found reports whether the key existed.
func (check Check) Holds(current Value, found bool) bool {
	if check.Value == nil {
		return !found
	}
	return found && bytes.Equal(check.Value, current)
}

// Op is a single mutation. A nil Value deletes the key.
type Op struct {
	Key   Key
	Value Value
}

// IsDelete returns whether the operation removes the key.
func (op Op) IsDelete() bool { return op.Value == nil }

// Batch is a set of operations applied together, conditional on checks.
type Batch struct {
	Checks []Check
	Ops    []Op
}

// IsEmpty returns true when the batch neither checks nor writes anything.
func (batch *Batch) IsEmpty() bool {
	return len(batch.Checks) == 0 && len(batch.Ops) == 0
}

// Verify checks that every key in the batch is non-empty.
func (batch *Batch) Verify() error {
	for _, check := range batch.Checks {
		if check.Key.IsZero() {
			return ErrEmptyKey.New("check")
		}
	}
	for _, op := range batch.Ops {
		if op.Key.IsZero() {
			return ErrEmptyKey.New("op")
		}
	}
	return nil
}

// Keys returns every key the batch touches, checks first, without duplicates.
func (batch *Batch) Keys() Keys {
	seen := make(map[string]struct{}, len(batch.Checks)+len(batch.Ops))
	keys := make(Keys, 0, len(batch.Checks)+len(batch.Ops))
	add := func(key Key) {
		if _, ok := seen[string(key)]; ok {
			return
		}
		seen[string(key)] = struct{}{}
		keys = append(keys, key)
	}
	for _, check := range batch.Checks {
		add(check.Key)
	}
	for _, op := range batch.Ops {
		add(op.Key)
	}
	return keys
}

// CompareAndSwap atomically replaces oldValue with newValue. A nil oldValue
// requires the key to be absent and a nil newValue deletes it.
func CompareAndSwap(ctx context.Context, store Store, key Key, oldValue, newValue Value) (err error) {
	defer mon.Task()(&ctx)(&err)

	return store.Apply(ctx, Batch{
		Checks: []Check{{Key: key, Value: oldValue}},
		Ops:    []Op{{Key: key, Value: newValue}},
	})
}
