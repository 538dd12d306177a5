// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package filestore

import (
	"context"
	"io"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/common/memory"
	"storj.io/repostore/blobstore"
)

var (
	// Error is the default filestore error class.
	Error = errs.Class("filestore error")

	mon = monkit.Package()

	_ blobstore.Blobs = (*blobStore)(nil)
)

// Config is configuration for the blob store.
type Config struct {
	WriteBufferSize memory.Size `help:"in-memory buffer for uploads" default:"128KiB"`
	ForceSync       bool        `help:"if true, force disk synchronization before commit" default:"false"`
	Compression     string      `help:"at-rest compression of blob files: none, zstd or lz4" default:"none"`
}

// DefaultConfig is the default value for Config.
var DefaultConfig = Config{
	WriteBufferSize: 128 * memory.KiB,
	ForceSync:       false,
	Compression:     "none",
}

// blobStore implements a blob store.
type blobStore struct {
	log         *zap.Logger
	dir         *Dir
	config      Config
	compression Compression
}

// New creates a new disk blob store in the specified directory.
func New(log *zap.Logger, dir *Dir, config Config) (blobstore.Blobs, error) {
	compression, err := ParseCompression(config.Compression)
	if err != nil {
		return nil, err
	}
	if config.WriteBufferSize <= 0 {
		config.WriteBufferSize = DefaultConfig.WriteBufferSize
	}
	return &blobStore{log: log, dir: dir, config: config, compression: compression}, nil
}

// NewAt creates a new disk blob store in the specified directory.
func NewAt(log *zap.Logger, path string, config Config) (blobstore.Blobs, error) {
	dir, err := NewDir(log, path)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return New(log, dir, config)
}

// Close closes the store.
func (store *blobStore) Close() error { return nil }

// Create creates a new blob that can be written.
func (store *blobStore) Create(ctx context.Context) (_ blobstore.BlobWriter, err error) {
	defer mon.Task()(&ctx)(&err)

	file, err := store.dir.CreateTemporaryFile(ctx)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	writer, err := newBlobWriter(store, file, store.compression, store.config.WriteBufferSize.Int())
	if err != nil {
		return nil, Error.Wrap(errs.Combine(err, store.dir.DeleteTemporary(ctx, file)))
	}
	return writer, nil
}

// Open loads blob with the specified ref.
func (store *blobStore) Open(ctx context.Context, ref blobstore.BlobRef) (_ io.ReadCloser, err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := blobstore.ParseBlobRef(string(ref)); err != nil {
		return nil, err
	}

	file, err := store.dir.Open(ctx, ref)
	if err != nil {
		return nil, err
	}

	h, err := readHeader(file)
	if err != nil {
		return nil, errs.Combine(err, file.Close())
	}

	reader, err := h.compression.decompressor(file)
	if err != nil {
		return nil, errs.Combine(err, file.Close())
	}
	return &blobReader{ReadCloser: reader, file: file}, nil
}

// Stat looks up disk metadata on the blob file.
func (store *blobStore) Stat(ctx context.Context, ref blobstore.BlobRef) (_ blobstore.BlobInfo, err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := blobstore.ParseBlobRef(string(ref)); err != nil {
		return blobstore.BlobInfo{}, err
	}

	file, err := store.dir.Open(ctx, ref)
	if err != nil {
		return blobstore.BlobInfo{}, err
	}
	defer func() { err = errs.Combine(err, file.Close()) }()

	h, err := readHeader(file)
	if err != nil {
		return blobstore.BlobInfo{}, err
	}
	return blobstore.BlobInfo{Ref: ref, Size: h.size}, nil
}
