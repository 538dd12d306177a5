// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package repository

import (
	"context"
	"io"
	"time"

	"storj.io/repostore/blobstore"
	"storj.io/repostore/repository/hashes"
)

// ContentAttributes are the caller supplied attributes of stored content.
type ContentAttributes struct {
	LastModified time.Time         `cbor:"last_modified"`
	ETag         string            `cbor:"etag,omitempty"`
	Extra        map[string]string `cbor:"extra,omitempty"`
}

// Merge returns attrs updated with every field set in update. Extra values
// are merged key by key, an empty value removes the key.
func (attrs ContentAttributes) Merge(update *ContentAttributes) ContentAttributes {
	merged := attrs
	merged.Extra = nil
	for k, v := range attrs.Extra {
		merged.setExtra(k, v)
	}
	if update == nil {
		return merged
	}

	if !update.LastModified.IsZero() {
		merged.LastModified = update.LastModified
	}
	if update.ETag != "" {
		merged.ETag = update.ETag
	}
	for k, v := range update.Extra {
		merged.setExtra(k, v)
	}
	return merged
}

func (attrs *ContentAttributes) setExtra(k, v string) {
	if v == "" {
		delete(attrs.Extra, k)
		return
	}
	if attrs.Extra == nil {
		attrs.Extra = map[string]string{}
	}
	attrs.Extra[k] = v
}

// MaintainLastModified merges update into existing. When update does not
// carry a last modified time, it is set to now.
func MaintainLastModified(existing ContentAttributes, update *ContentAttributes, now time.Time) ContentAttributes {
	merged := existing.Merge(update)
	if update == nil || update.LastModified.IsZero() {
		merged.LastModified = now
	}
	return merged
}

// BlobOpener opens stored blobs.
type BlobOpener interface {
	Open(ctx context.Context, ref blobstore.BlobRef) (io.ReadCloser, error)
}

// Content is stored payload together with its attributes.
type Content struct {
	Path        string
	ContentType string
	Size        int64
	Blob        blobstore.BlobRef
	Hashes      hashes.Digests
	Attributes  ContentAttributes
	LastUpdated time.Time

	blobs BlobOpener
}

// NewContent creates content whose payload is read from blobs.
func NewContent(blobs BlobOpener) *Content {
	return &Content{blobs: blobs}
}

// Open returns the payload.
func (content *Content) Open(ctx context.Context) (io.ReadCloser, error) {
	if content.blobs == nil {
		return nil, Error.New("content has no payload")
	}
	return content.blobs.Open(ctx, content.Blob)
}

// Hash returns the stored digest for alg.
func (content *Content) Hash(alg hashes.Algorithm) string {
	return content.Hashes[alg]
}
