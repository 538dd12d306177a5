// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package storage_test

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec
	"encoding/hex"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/common/memory"
	"storj.io/common/testcontext"
	"storj.io/common/testrand"
	"storj.io/repostore/blobstore/filestore"
	"storj.io/repostore/private/kvstore/teststore"
	"storj.io/repostore/private/testblobs"
	"storj.io/repostore/repository"
	"storj.io/repostore/repository/hashes"
	"storj.io/repostore/repository/storage"
)

var testRepo = repository.Repository{
	Name:   "releases",
	Format: repository.FormatMaven2,
	Type:   repository.Hosted,
}

type env struct {
	db    *storage.DB
	kv    *teststore.Client
	blobs *testblobs.BadBlobs
}

func newEnv(t *testing.T, ctx *testcontext.Context, config storage.Config) *env {
	log := zaptest.NewLogger(t)

	files, err := filestore.NewAt(log, ctx.Dir("blobs"), filestore.DefaultConfig)
	require.NoError(t, err)

	kv := teststore.New()
	blobs := testblobs.NewBadBlobs(log, files)
	return &env{
		db:    storage.NewDB(log, kv, blobs, config),
		kv:    kv,
		blobs: blobs,
	}
}

func testConfig() storage.Config {
	config := storage.DefaultConfig
	config.RetryDelay = time.Millisecond
	return config
}

var key = storage.ComponentKey{Group: "org.example", Name: "lib", Version: "1.0"}

func createBlob(ctx context.Context, t *testing.T, db *storage.DB, data []byte) *storage.AssetBlob {
	blob, err := db.CreateBlob(ctx, bytes.NewReader(data), "application/java-archive", hashes.All...)
	require.NoError(t, err)
	return blob
}

func TestComponentLifecycle(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	env := newEnv(t, ctx, testConfig())
	blob := createBlob(ctx, t, env.db, testrand.BytesInt(memory.KiB.Int()))

	err := env.db.WithTx(ctx, testRepo, func(ctx context.Context, tx *storage.Tx) error {
		component := &storage.Component{Key: key}
		component.SetAttribute("packaging", "jar")
		if err := tx.CreateComponent(ctx, component); err != nil {
			return err
		}
		for _, name := range []string{"org/example/lib/1.0/lib-1.0.pom", "org/example/lib/1.0/lib-1.0.jar"} {
			asset := &storage.Asset{Name: name, Kind: storage.KindArtifact, Component: &key}
			if err := tx.AttachBlob(asset, blob, nil); err != nil {
				return err
			}
			if err := tx.SaveAsset(ctx, asset); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	tx := env.db.Begin(ctx, testRepo)
	component, err := tx.FindComponent(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, component)
	require.Equal(t, "jar", component.Attribute("packaging"))
	require.Equal(t, []string{"org/example/lib/1.0/lib-1.0.jar", "org/example/lib/1.0/lib-1.0.pom"}, component.Assets)

	assets, err := tx.BrowseAssets(ctx, key)
	require.NoError(t, err)
	require.Len(t, assets, 2)
	for _, asset := range assets {
		require.Equal(t, blob.Ref, asset.Blob)
		require.Equal(t, blob.Hashes, asset.Hashes)
		require.Equal(t, testRepo.Name, asset.Repository)
		require.False(t, asset.Content.LastModified.IsZero())
	}
	// both assets were written by the same transaction
	require.Empty(t, cmp.Diff(assets[0], assets[1], cmpopts.IgnoreFields(storage.Asset{}, "Name")))
	tx.Rollback()

	// deleting the first asset keeps the component
	err = env.db.WithTx(ctx, testRepo, func(ctx context.Context, tx *storage.Tx) error {
		deleted, err := tx.DeleteAsset(ctx, "org/example/lib/1.0/lib-1.0.jar")
		require.True(t, deleted)
		return err
	})
	require.NoError(t, err)

	listing, err := env.db.Browse(ctx, testRepo)
	require.NoError(t, err)
	require.Len(t, listing.Components, 1)
	require.Len(t, listing.Assets, 1)

	// deleting the last asset removes the component
	err = env.db.WithTx(ctx, testRepo, func(ctx context.Context, tx *storage.Tx) error {
		deleted, err := tx.DeleteAsset(ctx, "org/example/lib/1.0/lib-1.0.pom")
		require.True(t, deleted)
		return err
	})
	require.NoError(t, err)

	listing, err = env.db.Browse(ctx, testRepo)
	require.NoError(t, err)
	require.Empty(t, listing.Components)
	require.Empty(t, listing.Assets)
}

func TestDeleteComponent(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	env := newEnv(t, ctx, testConfig())
	blob := createBlob(ctx, t, env.db, []byte("payload"))

	require.NoError(t, env.db.WithTx(ctx, testRepo, func(ctx context.Context, tx *storage.Tx) error {
		if err := tx.CreateComponent(ctx, &storage.Component{Key: key}); err != nil {
			return err
		}
		asset := &storage.Asset{Name: "a.jar", Component: &key}
		require.NoError(t, tx.AttachBlob(asset, blob, nil))
		return tx.SaveAsset(ctx, asset)
	}))

	require.NoError(t, env.db.WithTx(ctx, testRepo, func(ctx context.Context, tx *storage.Tx) error {
		deleted, err := tx.DeleteComponent(ctx, key)
		require.True(t, deleted)
		return err
	}))

	listing, err := env.db.Browse(ctx, testRepo)
	require.NoError(t, err)
	require.Empty(t, listing.Components)
	require.Empty(t, listing.Assets)
}

func TestSaveAssetRequiresComponent(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	env := newEnv(t, ctx, testConfig())

	err := env.db.WithTx(ctx, testRepo, func(ctx context.Context, tx *storage.Tx) error {
		return tx.SaveAsset(ctx, &storage.Asset{Name: "a.jar", Component: &key})
	})
	require.True(t, storage.ErrInvalidRequest.Has(err), err)
}

func TestCommitConflict(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	env := newEnv(t, ctx, testConfig())

	first := env.db.Begin(ctx, testRepo)
	second := env.db.Begin(ctx, testRepo)

	require.NoError(t, first.CreateComponent(ctx, &storage.Component{Key: key}))
	require.NoError(t, second.CreateComponent(ctx, &storage.Component{Key: key}))

	require.NoError(t, first.Commit(ctx))
	err := second.Commit(ctx)
	require.True(t, storage.ErrWriteConflict.Has(err), err)

	err = second.Commit(ctx)
	require.True(t, storage.ErrTxDone.Has(err), err)
}

func TestReadOnlyCommit(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	env := newEnv(t, ctx, testConfig())

	tx := env.db.Begin(ctx, testRepo)
	component, err := tx.FindComponent(ctx, key)
	require.NoError(t, err)
	require.Nil(t, component)
	require.NoError(t, tx.Commit(ctx))
	require.Zero(t, env.kv.CallCount.Apply)
}

func TestWithTxRetriesConflicts(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	env := newEnv(t, ctx, testConfig())

	attempts := 0
	err := env.db.WithTx(ctx, testRepo, func(ctx context.Context, tx *storage.Tx) error {
		attempts++
		existing, err := tx.FindComponent(ctx, key)
		if err != nil {
			return err
		}
		if attempts == 1 {
			// a concurrent writer creates the component after it was read
			require.NoError(t, env.db.WithTx(ctx, testRepo, func(ctx context.Context, tx *storage.Tx) error {
				return tx.CreateComponent(ctx, &storage.Component{Key: key})
			}))
		}
		if existing != nil {
			existing.SetAttribute("touched", "yes")
			return tx.SaveComponent(ctx, existing)
		}
		return tx.CreateComponent(ctx, &storage.Component{Key: key})
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)

	tx := env.db.Begin(ctx, testRepo)
	defer tx.Rollback()
	component, err := tx.FindComponent(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "yes", component.Attribute("touched"))
}

func TestWithTxExhausted(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	config := testConfig()
	config.MaxAttempts = 3
	env := newEnv(t, ctx, config)

	attempts := 0
	err := env.db.WithTx(ctx, testRepo, func(ctx context.Context, tx *storage.Tx) error {
		attempts++
		return storage.ErrWriteConflict.New("always")
	})
	require.Error(t, err)
	require.True(t, storage.Error.Has(err))
	require.True(t, storage.ErrWriteConflict.Has(err))
	require.Equal(t, 3, attempts)
}

func TestWithTxDoesNotRetryOtherErrors(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	env := newEnv(t, ctx, testConfig())

	attempts := 0
	err := env.db.WithTx(ctx, testRepo, func(ctx context.Context, tx *storage.Tx) error {
		attempts++
		return storage.ErrPolicyViolation.New("denied")
	})
	require.True(t, storage.ErrPolicyViolation.Has(err))
	require.Equal(t, 1, attempts)
}

func TestStorageUnavailable(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	env := newEnv(t, ctx, testConfig())

	env.kv.ForceError = 1
	attempts := 0
	err := env.db.WithTx(ctx, testRepo, func(ctx context.Context, tx *storage.Tx) error {
		attempts++
		_, err := tx.FindAsset(ctx, "a.jar")
		return err
	})
	require.True(t, storage.ErrStorageUnavailable.Has(err), err)
	require.Equal(t, 1, attempts)

	_, err = env.db.Browse(ctx, testRepo)
	require.NoError(t, err)
}

func TestCreateBlob(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	env := newEnv(t, ctx, testConfig())

	data := testrand.BytesInt(10 * memory.KiB.Int())
	blob := createBlob(ctx, t, env.db, data)

	sum := sha1.Sum(data) //nolint:gosec
	require.Equal(t, hex.EncodeToString(sum[:]), blob.Hashes[hashes.SHA1])
	require.Len(t, blob.Hashes, len(hashes.All))
	require.EqualValues(t, len(data), blob.Size)

	reader, err := env.db.Blobs().Open(ctx, blob.Ref)
	require.NoError(t, err)
	defer ctx.Check(reader.Close)

	stored, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, data, stored)

	// identical content is stored once
	again := createBlob(ctx, t, env.db, data)
	require.Equal(t, blob.Ref, again.Ref)
}

func TestCreateBlobFailures(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	env := newEnv(t, ctx, testConfig())

	env.blobs.SetCommitError(errors.New("disk full"))
	_, err := env.db.CreateBlob(ctx, bytes.NewReader([]byte("data")), "")
	require.True(t, storage.ErrStorageUnavailable.Has(err), err)

	env.blobs.SetCommitError(nil)
	env.blobs.SetError(errors.New("offline"))
	_, err = env.db.CreateBlob(ctx, bytes.NewReader([]byte("data")), "")
	require.True(t, storage.ErrStorageUnavailable.Has(err), err)

	env.blobs.SetError(nil)
	_, err = env.db.CreateBlob(ctx, io.MultiReader(bytes.NewReader([]byte("da")), failingReader{}), "")
	require.Error(t, err)
	require.False(t, storage.ErrStorageUnavailable.Has(err))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestMarkAccessed(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var asset storage.Asset
	require.True(t, asset.MarkAccessed(now, time.Hour))
	require.False(t, asset.MarkAccessed(now.Add(time.Minute), time.Hour))
	require.True(t, asset.MarkAccessed(now.Add(2*time.Hour), time.Hour))
	require.Equal(t, now.Add(2*time.Hour), asset.LastAccessed)
}

func TestWritePolicy(t *testing.T) {
	for _, tt := range []struct {
		policy  storage.WritePolicy
		exists  bool
		allowed bool
	}{
		{storage.WriteAllow, false, true},
		{storage.WriteAllow, true, true},
		{storage.WriteAllowOnce, false, true},
		{storage.WriteAllowOnce, true, false},
		{storage.WriteDeny, false, false},
		{storage.WriteDeny, true, false},
	} {
		err := tt.policy.Check(tt.exists)
		if tt.allowed {
			require.NoError(t, err, "%v exists=%v", tt.policy, tt.exists)
		} else {
			require.True(t, storage.ErrPolicyViolation.Has(err), "%v exists=%v", tt.policy, tt.exists)
		}
	}

	policy, err := storage.ParseWritePolicy("allow_once")
	require.NoError(t, err)
	require.Equal(t, storage.WriteAllowOnce, policy)

	_, err = storage.ParseWritePolicy("sometimes")
	require.True(t, storage.ErrInvalidRequest.Has(err))
}
