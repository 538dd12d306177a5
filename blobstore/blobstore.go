// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package blobstore defines the content-addressed blob storage used for
// repository payloads.
package blobstore

import (
	"context"
	"encoding/hex"
	"io"

	"github.com/zeebo/blake3"
	"github.com/zeebo/errs"
)

var (
	// Error is the default blobstore error class.
	Error = errs.Class("blobstore")
	// ErrNotFound is returned when a blob does not exist.
	ErrNotFound = errs.Class("blob not found")
	// ErrInvalidRef is returned for malformed blob references.
	ErrInvalidRef = errs.Class("invalid blob reference")
)

// RefSize is the length of a blob reference in bytes.
const RefSize = 32

// BlobRef is the content address of a blob, the hex encoded BLAKE3 digest of
// its bytes.
type BlobRef string

// ParseBlobRef validates s as a blob reference.
func ParseBlobRef(s string) (BlobRef, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return "", ErrInvalidRef.New("%q: %v", s, err)
	}
	if len(raw) != RefSize {
		return "", ErrInvalidRef.New("%q: expected %d bytes, got %d", s, RefSize, len(raw))
	}
	return BlobRef(s), nil
}

// IsZero returns whether the reference is unset.
func (ref BlobRef) IsZero() bool { return ref == "" }

// String implements fmt.Stringer.
func (ref BlobRef) String() string { return string(ref) }

// Prefix returns the first two characters of the reference, used for
// sharding blobs into directories.
func (ref BlobRef) Prefix() string {
	if len(ref) < 2 {
		return string(ref)
	}
	return string(ref[:2])
}

// BlobInfo describes a stored blob.
type BlobInfo struct {
	Ref  BlobRef
	Size int64
}

// BlobWriter is a blob in the process of being written. Exactly one of
// Commit or Cancel must be called.
type BlobWriter interface {
	io.Writer
	// Size returns the number of bytes written so far.
	Size() int64
	// Commit stores the written bytes under their content address.
	Commit(ctx context.Context) (BlobInfo, error)
	// Cancel discards the written bytes.
	Cancel(ctx context.Context) error
}

// Blobs is a content-addressed blob store. Blobs are never modified after
// they are committed.
type Blobs interface {
	// Create starts writing a new blob.
	Create(ctx context.Context) (BlobWriter, error)
	// Open returns a reader for the blob contents.
	Open(ctx context.Context, ref BlobRef) (io.ReadCloser, error)
	// Stat returns information about the blob.
	Stat(ctx context.Context, ref BlobRef) (BlobInfo, error)
	// Close releases the store.
	Close() error
}

// Hasher computes the content address of a stream.
type Hasher struct {
	hasher *blake3.Hasher
	size   int64
}

// NewHasher returns a new content address hasher.
func NewHasher() *Hasher {
	return &Hasher{hasher: blake3.New()}
}

// Write implements io.Writer.
func (hasher *Hasher) Write(p []byte) (int, error) {
	n, err := hasher.hasher.Write(p)
	hasher.size += int64(n)
	return n, err
}

// Size returns the number of bytes hashed.
func (hasher *Hasher) Size() int64 { return hasher.size }

// Ref returns the reference of the bytes written so far.
func (hasher *Hasher) Ref() BlobRef {
	return BlobRef(hex.EncodeToString(hasher.hasher.Sum(nil)))
}

// RefOf returns the reference of data.
func RefOf(data []byte) BlobRef {
	sum := blake3.Sum256(data)
	return BlobRef(hex.EncodeToString(sum[:]))
}
