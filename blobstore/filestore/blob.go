// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package filestore

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"os"

	"github.com/zeebo/errs"

	"storj.io/repostore/blobstore"
)

const (
	// formatV1 is the only blob file format: a fixed header followed by the
	// possibly compressed payload.
	formatV1 = 1

	// headerSize is format (1 byte), compression (1 byte) and the
	// uncompressed size (8 bytes, big endian).
	headerSize = 10
)

type header struct {
	format      byte
	compression Compression
	size        int64
}

func (h header) encode() []byte {
	var buf [headerSize]byte
	buf[0] = h.format
	buf[1] = byte(h.compression)
	binary.BigEndian.PutUint64(buf[2:], uint64(h.size))
	return buf[:]
}

func readHeader(r io.Reader) (header, error) {
	var buf [headerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return header{}, Error.New("unable to read header: %v", err)
	}
	h := header{
		format:      buf[0],
		compression: Compression(buf[1]),
		size:        int64(binary.BigEndian.Uint64(buf[2:])),
	}
	if h.format != formatV1 {
		return header{}, Error.New("unsupported blob format %d", h.format)
	}
	return h, nil
}

// blobReader implements reading blobs.
type blobReader struct {
	io.ReadCloser
	file *os.File
}

// Close closes the reader.
func (blob *blobReader) Close() error {
	return errs.Combine(blob.ReadCloser.Close(), blob.file.Close())
}

// blobWriter implements writing blobs.
type blobWriter struct {
	store       *blobStore
	file        *os.File
	buffer      *bufio.Writer
	compressor  io.WriteCloser
	compression Compression
	hasher      *blobstore.Hasher
	closed      bool
}

func newBlobWriter(store *blobStore, file *os.File, compression Compression, bufferSize int) (*blobWriter, error) {
	if _, err := file.Write(make([]byte, headerSize)); err != nil {
		return nil, err
	}

	buffer := bufio.NewWriterSize(file, bufferSize)
	compressor, err := compression.compressor(buffer)
	if err != nil {
		return nil, err
	}

	return &blobWriter{
		store:       store,
		file:        file,
		buffer:      buffer,
		compressor:  compressor,
		compression: compression,
		hasher:      blobstore.NewHasher(),
	}, nil
}

// Write adds data to the blob.
func (blob *blobWriter) Write(p []byte) (int, error) {
	if blob.closed {
		return 0, Error.New("write to closed blob")
	}
	n, err := blob.compressor.Write(p)
	_, _ = blob.hasher.Write(p[:n])
	return n, err
}

// Size returns how much has been written so far.
func (blob *blobWriter) Size() int64 { return blob.hasher.Size() }

// Cancel discards the blob.
func (blob *blobWriter) Cancel(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	if blob.closed {
		return nil
	}
	blob.closed = true

	return Error.Wrap(errs.Combine(blob.compressor.Close(), blob.store.dir.DeleteTemporary(ctx, blob.file)))
}

// Commit moves the file to the target location.
func (blob *blobWriter) Commit(ctx context.Context) (_ blobstore.BlobInfo, err error) {
	defer mon.Task()(&ctx)(&err)

	if blob.closed {
		return blobstore.BlobInfo{}, Error.New("already closed")
	}
	blob.closed = true

	info := blobstore.BlobInfo{
		Ref:  blob.hasher.Ref(),
		Size: blob.hasher.Size(),
	}

	err = errs.Combine(blob.compressor.Close(), blob.buffer.Flush())
	if err == nil {
		h := header{format: formatV1, compression: blob.compression, size: info.Size}
		_, err = blob.file.WriteAt(h.encode(), 0)
	}
	if err != nil {
		return blobstore.BlobInfo{}, Error.Wrap(errs.Combine(err, blob.store.dir.DeleteTemporary(ctx, blob.file)))
	}

	if err := blob.store.dir.Commit(ctx, blob.file, blob.store.config.ForceSync, info.Ref); err != nil {
		return blobstore.BlobInfo{}, Error.Wrap(err)
	}

	mon.Meter("blob_written_bytes").Mark64(info.Size)
	return info, nil
}
