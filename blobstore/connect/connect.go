// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package connect opens a blobstore.Blobs from a URL.
package connect

import (
	"context"
	"strings"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/repostore/blobstore"
	"storj.io/repostore/blobstore/filestore"
	"storj.io/repostore/blobstore/s3store"
)

// Error is the error class for opening blob stores.
var Error = errs.Class("blobstore connect")

// Open opens the blob store at blobsURL, either file://<dir>, a plain
// directory, or s3://access:secret@host/bucket/prefix.
func Open(ctx context.Context, log *zap.Logger, blobsURL string, config filestore.Config) (blobstore.Blobs, error) {
	scheme, rest, ok := strings.Cut(blobsURL, "://")
	if !ok {
		scheme, rest = "file", blobsURL
	}

	switch scheme {
	case "file":
		if rest == "" {
			return nil, Error.New("directory missing in %q", blobsURL)
		}
		store, err := filestore.NewAt(log, rest, config)
		return store, Error.Wrap(err)
	case "s3":
		s3config, err := s3store.ParseURL(blobsURL)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		store, err := s3store.Open(ctx, log, s3config)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		return store, nil
	default:
		return nil, Error.New("unsupported blob store %q", blobsURL)
	}
}
