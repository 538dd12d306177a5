// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package filestore

import (
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression is the at-rest encoding of blob files.
type Compression byte

const (
	// CompressionNone stores blobs as written.
	CompressionNone Compression = 0
	// CompressionZstd compresses blobs with zstd.
	CompressionZstd Compression = 1
	// CompressionLZ4 compresses blobs with lz4.
	CompressionLZ4 Compression = 2
)

// ParseCompression parses the configuration value of a compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, Error.New("unknown compression %q", s)
	}
}

// String returns the configuration name of the compression.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// compressor wraps w so that everything written is encoded with c. Close
// flushes the encoder but does not close w.
func (c Compression) compressor(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionZstd:
		encoder, err := zstd.NewWriter(w)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		return encoder, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, Error.New("unknown compression %d", c)
	}
}

type zstdReadCloser struct{ *zstd.Decoder }

func (r zstdReadCloser) Close() error {
	r.Decoder.Close()
	return nil
}

// decompressor decodes r, the returned Close does not close r.
func (c Compression) decompressor(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionZstd:
		decoder, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, Error.Wrap(err)
		}
		return zstdReadCloser{decoder}, nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, Error.New("unknown compression %d", c)
	}
}
