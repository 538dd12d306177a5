// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package storage implements the transactional component and asset model on
// top of a key value store and a blob store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/common/sync2"
	"storj.io/repostore/blobstore"
	"storj.io/repostore/private/kvstore"
	"storj.io/repostore/repository"
	"storj.io/repostore/repository/hashes"
)

var mon = monkit.Package()

// Config configures the transactional storage.
type Config struct {
	MaxAttempts            int           `help:"maximum number of attempts of a conflicting transaction" default:"10"`
	RetryDelay             time.Duration `help:"base delay between attempts of a conflicting transaction" default:"10ms"`
	AccessedUpdateInterval time.Duration `help:"minimum interval between updates of the last accessed time of an asset" default:"1h"`
}

// DefaultConfig is the default storage configuration.
var DefaultConfig = Config{
	MaxAttempts:            10,
	RetryDelay:             10 * time.Millisecond,
	AccessedUpdateInterval: time.Hour,
}

// TxOptions configures WithTxOptions.
type TxOptions struct {
	// RetryOn lists the error classes that restart the transaction.
	RetryOn []*errs.Class
}

// DB gives transactional access to components and assets.
type DB struct {
	log    *zap.Logger
	kv     kvstore.Store
	blobs  blobstore.Blobs
	config Config

	now func() time.Time
}

// NewDB returns a new DB using kv for entities and blobs for payloads.
func NewDB(log *zap.Logger, kv kvstore.Store, blobs blobstore.Blobs, config Config) *DB {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultConfig.MaxAttempts
	}
	if config.RetryDelay < 0 {
		config.RetryDelay = 0
	}
	return &DB{
		log:    log,
		kv:     kv,
		blobs:  blobs,
		config: config,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Config returns the configuration.
func (db *DB) Config() Config { return db.config }

// Blobs returns the blob store.
func (db *DB) Blobs() blobstore.Blobs { return db.blobs }

// SetNow replaces the clock used for timestamps.
func (db *DB) SetNow(now func() time.Time) { db.now = now }

// Begin starts a new transaction on repo. The caller must Commit or Rollback it.
func (db *DB) Begin(ctx context.Context, repo repository.Repository) *Tx {
	return &Tx{
		db:     db,
		repo:   repo,
		now:    db.now(),
		reads:  map[string]kvstore.Value{},
		writes: map[string]kvstore.Value{},
	}
}

// WithTx runs fn inside a transaction and commits it. The whole callback is
// retried from a fresh transaction when the commit conflicts.
//
// fn may be called more than once, so any side effects outside of the
// transaction must be idempotent.
func (db *DB) WithTx(ctx context.Context, repo repository.Repository, fn func(context.Context, *Tx) error) error {
	return db.WithTxOptions(ctx, repo, TxOptions{RetryOn: []*errs.Class{&ErrWriteConflict}}, fn)
}

// WithTxOptions is WithTx with explicit retry options.
func (db *DB) WithTxOptions(ctx context.Context, repo repository.Repository, opts TxOptions, fn func(context.Context, *Tx) error) (err error) {
	defer mon.Task()(&ctx)(&err)

	for attempt := 1; ; attempt++ {
		err = db.withTxOnce(ctx, repo, fn)
		if err == nil || !retryable(err, opts.RetryOn) {
			mon.IntVal("tx_attempts").Observe(int64(attempt))
			return err
		}

		if attempt >= db.config.MaxAttempts {
			mon.Event("tx_attempts_exhausted")
			db.log.Warn("transaction failed",
				zap.String("repository", repo.Name),
				zap.Int("attempts", attempt),
				zap.Error(err))
			return Error.Wrap(err)
		}

		db.log.Debug("retrying transaction",
			zap.String("repository", repo.Name),
			zap.Int("attempt", attempt),
			zap.Error(err))
		mon.Event(fmt.Sprintf("tx_retry_%d", attempt))

		if !sync2.Sleep(ctx, db.backoff(attempt)) {
			return Error.Wrap(errs.Combine(err, ctx.Err()))
		}
	}
}

func (db *DB) withTxOnce(ctx context.Context, repo repository.Repository, fn func(context.Context, *Tx) error) (err error) {
	tx := db.Begin(ctx, repo)
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (db *DB) backoff(attempt int) time.Duration {
	delay := db.config.RetryDelay * time.Duration(attempt)
	if db.config.RetryDelay > 0 {
		delay += time.Duration(rand.Int64N(int64(db.config.RetryDelay)))
	}
	return delay
}

func retryable(err error, classes []*errs.Class) bool {
	for _, class := range classes {
		if class.Has(err) {
			return true
		}
	}
	return false
}

// CreateBlob stores the contents of r and computes the digests for algs in
// the same pass. The blob is committed to the blob store before it is
// returned, so it can be attached by any number of transaction attempts.
func (db *DB) CreateBlob(ctx context.Context, r io.Reader, contentType string, algs ...hashes.Algorithm) (_ *AssetBlob, err error) {
	defer mon.Task()(&ctx)(&err)

	hasher, err := hashes.NewMultiHasher(algs...)
	if err != nil {
		return nil, ErrInvalidRequest.Wrap(err)
	}

	writer, err := db.blobs.Create(ctx)
	if err != nil {
		return nil, ErrStorageUnavailable.Wrap(err)
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, writer.Cancel(ctx))
		}
	}()

	source := &trackingReader{r: r}
	if _, err := io.Copy(io.MultiWriter(writer, hasher), source); err != nil {
		if source.err != nil {
			return nil, Error.New("reading content: %v", source.err)
		}
		return nil, ErrStorageUnavailable.Wrap(err)
	}

	info, err := writer.Commit(ctx)
	if err != nil {
		return nil, ErrStorageUnavailable.Wrap(err)
	}

	mon.IntVal("blob_size").Observe(info.Size)
	return &AssetBlob{
		Ref:         info.Ref,
		Size:        info.Size,
		ContentType: contentType,
		Hashes:      hasher.Digests(),
	}, nil
}

// Listing is the content of a repository.
type Listing struct {
	Components []*Component
	Assets     []*Asset
}

// Browse lists every component and asset of repo, sorted by key.
func (db *DB) Browse(ctx context.Context, repo repository.Repository) (_ *Listing, err error) {
	defer mon.Task()(&ctx)(&err)

	components, assets := componentsPrefix(repo.Name), assetsPrefix(repo.Name)

	listing := &Listing{}
	err = db.kv.Range(ctx, func(ctx context.Context, key kvstore.Key, value kvstore.Value) error {
		switch {
		case hasPrefix(key, components):
			var component Component
			if err := decode(value, &component); err != nil {
				return err
			}
			listing.Components = append(listing.Components, &component)
		case hasPrefix(key, assets):
			var asset Asset
			if err := decode(value, &asset); err != nil {
				return err
			}
			listing.Assets = append(listing.Assets, &asset)
		}
		return nil
	})
	if err != nil {
		if Error.Has(err) {
			return nil, err
		}
		return nil, ErrStorageUnavailable.Wrap(err)
	}

	sort.Slice(listing.Components, func(i, k int) bool {
		return listing.Components[i].Key.String() < listing.Components[k].Key.String()
	})
	sort.Slice(listing.Assets, func(i, k int) bool {
		return listing.Assets[i].Name < listing.Assets[k].Name
	})
	return listing, nil
}

// trackingReader remembers the error returned by the underlying reader, so
// it can be told apart from blob store failures.
type trackingReader struct {
	r   io.Reader
	err error
}

func (reader *trackingReader) Read(p []byte) (int, error) {
	n, err := reader.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		reader.err = err
	}
	return n, err
}
