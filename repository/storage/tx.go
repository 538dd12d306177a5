// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package storage

import (
	"context"
	"sort"
	"strings"
	"time"

	"storj.io/repostore/private/kvstore"
	"storj.io/repostore/repository"
)

// Tx is a unit of work against a single repository.
//
// Every key read through the transaction is recorded together with the value
// it held, and every write is buffered. Commit applies the writes only when
// none of the recorded values changed in the meantime.
type Tx struct {
	db   *DB
	repo repository.Repository
	now  time.Time

	// reads holds the observed values, nil when the key was absent.
	reads map[string]kvstore.Value
	// writes holds the buffered values, nil for deletes.
	writes map[string]kvstore.Value

	done bool
}

// Repository returns the repository the transaction operates on.
func (tx *Tx) Repository() repository.Repository { return tx.repo }

// Now returns the timestamp used for every entity modified by the transaction.
func (tx *Tx) Now() time.Time { return tx.now }

func (tx *Tx) get(ctx context.Context, key kvstore.Key) (_ kvstore.Value, err error) {
	defer mon.Task()(&ctx)(&err)
	if tx.done {
		return nil, ErrTxDone.New("")
	}

	if value, ok := tx.writes[string(key)]; ok {
		return value, nil
	}
	if value, ok := tx.reads[string(key)]; ok {
		return value, nil
	}

	value, err := tx.db.kv.Get(ctx, key)
	switch {
	case kvstore.ErrKeyNotFound.Has(err):
		tx.reads[string(key)] = nil
		return nil, nil
	case err != nil:
		return nil, ErrStorageUnavailable.Wrap(err)
	case value == nil:
		// stored empty values still count as present
		value = kvstore.Value{}
	}

	tx.reads[string(key)] = kvstore.CloneValue(value)
	return value, nil
}

// set buffers value for key, a nil value deletes it. The key is read first,
// so that the write is conditional on the state it replaces.
func (tx *Tx) set(ctx context.Context, key kvstore.Key, value kvstore.Value) error {
	if _, err := tx.get(ctx, key); err != nil {
		return err
	}
	tx.writes[string(key)] = value
	return nil
}

func (tx *Tx) load(ctx context.Context, key kvstore.Key, v interface{}) (bool, error) {
	value, err := tx.get(ctx, key)
	if err != nil || value == nil {
		return false, err
	}
	return true, decode(value, v)
}

func (tx *Tx) store(ctx context.Context, key kvstore.Key, v interface{}) error {
	value, err := encode(v)
	if err != nil {
		return err
	}
	return tx.set(ctx, key, value)
}

// FindComponent returns the component identified by key or nil when it
// does not exist.
func (tx *Tx) FindComponent(ctx context.Context, key ComponentKey) (_ *Component, err error) {
	defer mon.Task()(&ctx)(&err)
	if err := key.Verify(); err != nil {
		return nil, err
	}

	var component Component
	found, err := tx.load(ctx, componentKey(tx.repo.Name, key), &component)
	if err != nil || !found {
		return nil, err
	}
	return &component, nil
}

// CreateComponent stores a new component. It fails when a component with the
// same key already exists.
func (tx *Tx) CreateComponent(ctx context.Context, component *Component) (err error) {
	defer mon.Task()(&ctx)(&err)
	if err := component.Key.Verify(); err != nil {
		return err
	}

	existing, err := tx.FindComponent(ctx, component.Key)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrWriteConflict.New("component %s already exists", component.Key)
	}

	component.Repository = tx.repo.Name
	component.Format = tx.repo.Format
	component.Assets = nil
	component.Created = tx.now
	component.LastUpdated = tx.now
	return tx.store(ctx, componentKey(tx.repo.Name, component.Key), component)
}

// SaveComponent updates an existing component. The asset membership of the
// component is owned by the transaction and is never taken from the argument.
func (tx *Tx) SaveComponent(ctx context.Context, component *Component) (err error) {
	defer mon.Task()(&ctx)(&err)

	existing, err := tx.FindComponent(ctx, component.Key)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrInvalidRequest.New("component %s does not exist", component.Key)
	}

	component.Repository = existing.Repository
	component.Format = existing.Format
	component.Assets = existing.Assets
	component.Created = existing.Created
	component.LastUpdated = tx.now
	return tx.store(ctx, componentKey(tx.repo.Name, component.Key), component)
}

// DeleteComponent deletes the component and every asset it owns. It returns
// false when the component does not exist.
func (tx *Tx) DeleteComponent(ctx context.Context, key ComponentKey) (_ bool, err error) {
	defer mon.Task()(&ctx)(&err)

	component, err := tx.FindComponent(ctx, key)
	if err != nil || component == nil {
		return false, err
	}

	for _, name := range component.Assets {
		if err := tx.set(ctx, assetKey(tx.repo.Name, name), nil); err != nil {
			return false, err
		}
	}
	return true, tx.set(ctx, componentKey(tx.repo.Name, key), nil)
}

// FindAsset returns the asset stored at name or nil when it does not exist.
func (tx *Tx) FindAsset(ctx context.Context, name string) (_ *Asset, err error) {
	defer mon.Task()(&ctx)(&err)
	if name == "" {
		return nil, ErrInvalidRequest.New("asset name missing")
	}

	var asset Asset
	found, err := tx.load(ctx, assetKey(tx.repo.Name, name), &asset)
	if err != nil || !found {
		return nil, err
	}
	return &asset, nil
}

// SaveAsset creates or updates the asset. When the asset belongs to a
// component, the component must exist and its membership is updated.
func (tx *Tx) SaveAsset(ctx context.Context, asset *Asset) (err error) {
	defer mon.Task()(&ctx)(&err)
	if asset.Name == "" {
		return ErrInvalidRequest.New("asset name missing")
	}

	existing, err := tx.FindAsset(ctx, asset.Name)
	if err != nil {
		return err
	}

	if existing != nil && existing.Component != nil &&
		(asset.Component == nil || *existing.Component != *asset.Component) {
		if _, err := tx.detach(ctx, *existing.Component, asset.Name); err != nil {
			return err
		}
	}

	if asset.Component != nil {
		component, err := tx.FindComponent(ctx, *asset.Component)
		if err != nil {
			return err
		}
		if component == nil {
			return ErrInvalidRequest.New("component %s does not exist", asset.Component)
		}
		if component.addAsset(asset.Name) {
			if err := tx.store(ctx, componentKey(tx.repo.Name, component.Key), component); err != nil {
				return err
			}
		}
	}

	asset.Repository = tx.repo.Name
	asset.Format = tx.repo.Format
	if existing != nil {
		asset.Created = existing.Created
	}
	if asset.Created.IsZero() {
		asset.Created = tx.now
	}
	asset.LastUpdated = tx.now
	return tx.store(ctx, assetKey(tx.repo.Name, asset.Name), asset)
}

// TouchAsset stores only the access bookkeeping of an asset.
func (tx *Tx) TouchAsset(ctx context.Context, asset *Asset) (err error) {
	defer mon.Task()(&ctx)(&err)
	return tx.store(ctx, assetKey(tx.repo.Name, asset.Name), asset)
}

// DeleteAsset deletes the asset stored at name. When it was the last asset of
// its component, the component is deleted as well. It returns false when the
// asset does not exist.
func (tx *Tx) DeleteAsset(ctx context.Context, name string) (_ bool, err error) {
	defer mon.Task()(&ctx)(&err)

	asset, err := tx.FindAsset(ctx, name)
	if err != nil || asset == nil {
		return false, err
	}

	if asset.Component != nil {
		if _, err := tx.detach(ctx, *asset.Component, name); err != nil {
			return false, err
		}
	}
	return true, tx.set(ctx, assetKey(tx.repo.Name, name), nil)
}

// detach removes name from the component and deletes the component when no
// assets remain. It returns whether the component was deleted.
func (tx *Tx) detach(ctx context.Context, key ComponentKey, name string) (bool, error) {
	component, err := tx.FindComponent(ctx, key)
	if err != nil || component == nil {
		return false, err
	}
	if !component.removeAsset(name) {
		return false, nil
	}
	if len(component.Assets) == 0 {
		return true, tx.set(ctx, componentKey(tx.repo.Name, key), nil)
	}
	return false, tx.store(ctx, componentKey(tx.repo.Name, key), component)
}

// BrowseAssets returns the assets owned by the component, sorted by name.
func (tx *Tx) BrowseAssets(ctx context.Context, key ComponentKey) (_ []*Asset, err error) {
	defer mon.Task()(&ctx)(&err)

	component, err := tx.FindComponent(ctx, key)
	if err != nil || component == nil {
		return nil, err
	}

	assets := make([]*Asset, 0, len(component.Assets))
	for _, name := range component.Assets {
		asset, err := tx.FindAsset(ctx, name)
		if err != nil {
			return nil, err
		}
		if asset != nil {
			assets = append(assets, asset)
		}
	}
	return assets, nil
}

// AttachBlob points the asset at blob. Content attributes given by the
// caller are merged into the existing ones and the last modified time
// defaults to the transaction time.
func (tx *Tx) AttachBlob(asset *Asset, blob *AssetBlob, attributes *repository.ContentAttributes) error {
	if blob == nil || blob.Ref.IsZero() {
		return ErrInvalidRequest.New("blob missing")
	}

	asset.Blob = blob.Ref
	asset.Size = blob.Size
	asset.ContentType = blob.ContentType
	asset.Hashes = blob.Hashes
	asset.Content = repository.MaintainLastModified(asset.Content, attributes, tx.now)
	asset.LastAccessed = tx.now
	asset.LastUpdated = tx.now
	return nil
}

// Commit applies the buffered writes. It returns ErrWriteConflict when any
// key read by the transaction has changed.
func (tx *Tx) Commit(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)
	if tx.done {
		return ErrTxDone.New("")
	}
	tx.done = true

	if len(tx.writes) == 0 {
		return nil
	}

	batch := kvstore.Batch{
		Checks: make([]kvstore.Check, 0, len(tx.reads)),
		Ops:    make([]kvstore.Op, 0, len(tx.writes)),
	}
	for _, key := range sortedKeys(tx.reads) {
		batch.Checks = append(batch.Checks, kvstore.Check{Key: kvstore.Key(key), Value: tx.reads[key]})
	}
	for _, key := range sortedKeys(tx.writes) {
		batch.Ops = append(batch.Ops, kvstore.Op{Key: kvstore.Key(key), Value: tx.writes[key]})
	}

	err = tx.db.kv.Apply(ctx, batch)
	switch {
	case err == nil:
		return nil
	case kvstore.ErrValueChanged.Has(err):
		mon.Meter("tx_conflict").Mark(1)
		return ErrWriteConflict.Wrap(err)
	default:
		return ErrStorageUnavailable.Wrap(err)
	}
}

// Rollback discards the buffered writes. It is safe to call after Commit.
func (tx *Tx) Rollback() {
	tx.done = true
	tx.writes = nil
}

func sortedKeys(m map[string]kvstore.Value) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// hasPrefix reports whether key lies in the namespace prefix.
func hasPrefix(key kvstore.Key, prefix string) bool {
	return strings.HasPrefix(string(key), prefix)
}
