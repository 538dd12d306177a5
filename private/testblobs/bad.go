// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package testblobs

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"storj.io/repostore/blobstore"
)

// BadBlobs implements a bad blob store.
type BadBlobs struct {
	log   *zap.Logger
	blobs blobstore.Blobs

	mu        sync.Mutex
	err       error
	commitErr error
}

var _ blobstore.Blobs = (*BadBlobs)(nil)

// NewBadBlobs creates a new bad blob store wrapping the provided blobs.
// Use SetError to manually configure the error returned by all operations.
func NewBadBlobs(log *zap.Logger, blobs blobstore.Blobs) *BadBlobs {
	return &BadBlobs{
		log:   log,
		blobs: blobs,
	}
}

// SetError configures the blob store to return a specific error for all operations.
func (bad *BadBlobs) SetError(err error) {
	bad.mu.Lock()
	defer bad.mu.Unlock()
	bad.err = err
}

// SetCommitError configures the error returned when committing a blob. Writing
// the blob succeeds.
func (bad *BadBlobs) SetCommitError(err error) {
	bad.mu.Lock()
	defer bad.mu.Unlock()
	bad.commitErr = err
}

func (bad *BadBlobs) errors() (err, commitErr error) {
	bad.mu.Lock()
	defer bad.mu.Unlock()
	return bad.err, bad.commitErr
}

// Create creates a new blob that can be written.
func (bad *BadBlobs) Create(ctx context.Context) (blobstore.BlobWriter, error) {
	if err, _ := bad.errors(); err != nil {
		return nil, err
	}
	writer, err := bad.blobs.Create(ctx)
	if err != nil {
		return nil, err
	}
	return &badWriter{BlobWriter: writer, bad: bad}, nil
}

// Open opens a reader for the blob.
func (bad *BadBlobs) Open(ctx context.Context, ref blobstore.BlobRef) (io.ReadCloser, error) {
	if err, _ := bad.errors(); err != nil {
		return nil, err
	}
	return bad.blobs.Open(ctx, ref)
}

// Stat looks up information about the blob.
func (bad *BadBlobs) Stat(ctx context.Context, ref blobstore.BlobRef) (blobstore.BlobInfo, error) {
	if err, _ := bad.errors(); err != nil {
		return blobstore.BlobInfo{}, err
	}
	return bad.blobs.Stat(ctx, ref)
}

// Close closes the blob store and any resources associated with it.
func (bad *BadBlobs) Close() error {
	if err, _ := bad.errors(); err != nil {
		return err
	}
	return bad.blobs.Close()
}

type badWriter struct {
	blobstore.BlobWriter
	bad *BadBlobs
}

// Commit fails when a commit error is configured and discards the blob.
func (writer *badWriter) Commit(ctx context.Context) (blobstore.BlobInfo, error) {
	err, commitErr := writer.bad.errors()
	if err == nil {
		err = commitErr
	}
	if err != nil {
		writer.bad.log.Debug("failing commit", zap.Error(err))
		_ = writer.BlobWriter.Cancel(ctx)
		return blobstore.BlobInfo{}, err
	}
	return writer.BlobWriter.Commit(ctx)
}
