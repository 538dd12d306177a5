// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package filestore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/repostore/blobstore"
)

const (
	blobPermission = 0600
	dirPermission  = 0700
)

// Dir represents single folder for storing blobs.
type Dir struct {
	log  *zap.Logger
	path string
}

// NewDir returns folder for storing blobs.
func NewDir(log *zap.Logger, path string) (*Dir, error) {
	dir := &Dir{
		log:  log,
		path: path,
	}

	return dir, errs.Combine(
		os.MkdirAll(dir.blobsdir(), dirPermission),
		os.MkdirAll(dir.tempdir(), dirPermission),
	)
}

// Path returns the directory path.
func (dir *Dir) Path() string { return dir.path }

func (dir *Dir) blobsdir() string { return filepath.Join(dir.path, "blobs") }
func (dir *Dir) tempdir() string  { return filepath.Join(dir.path, "temp") }

// CreateTemporaryFile creates a preallocated temporary file in the temp directory.
func (dir *Dir) CreateTemporaryFile(ctx context.Context) (_ *os.File, err error) {
	defer mon.Task()(&ctx)(&err)
	file, err := os.CreateTemp(dir.tempdir(), "blob-*.partial")
	if err != nil {
		return nil, err
	}
	return file, nil
}

// DeleteTemporary deletes a temporary file.
func (dir *Dir) DeleteTemporary(ctx context.Context, file *os.File) (err error) {
	defer mon.Task()(&ctx)(&err)
	closeErr := file.Close()
	return errs.Combine(closeErr, os.Remove(file.Name()))
}

// blobToPath converts blob reference to a filepath in permanent storage.
func (dir *Dir) blobToPath(ref blobstore.BlobRef) string {
	return filepath.Join(dir.blobsdir(), ref.Prefix(), string(ref[len(ref.Prefix()):]))
}

// Commit commits the temporary file to permanent storage. When a blob with
// the same reference exists already, the temporary file is discarded.
func (dir *Dir) Commit(ctx context.Context, file *os.File, sync bool, ref blobstore.BlobRef) (err error) {
	defer mon.Task()(&ctx)(&err)

	if sync {
		if err := file.Sync(); err != nil {
			return errs.Combine(err, dir.DeleteTemporary(ctx, file))
		}
	}

	if err := file.Close(); err != nil {
		return errs.Combine(err, os.Remove(file.Name()))
	}

	path := dir.blobToPath(ref)
	if _, err := os.Stat(path); err == nil {
		mon.Meter("blob_deduplicated").Mark(1)
		dir.log.Debug("blob exists", zap.Stringer("ref", ref))
		return os.Remove(file.Name())
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPermission); err != nil {
		return errs.Combine(err, os.Remove(file.Name()))
	}

	if err := rename(file.Name(), path); err != nil {
		return errs.Combine(err, os.Remove(file.Name()))
	}
	return nil
}

// Open opens the file with the specified ref.
func (dir *Dir) Open(ctx context.Context, ref blobstore.BlobRef) (_ *os.File, err error) {
	defer mon.Task()(&ctx)(&err)

	path := dir.blobToPath(ref)
	file, err := openFileReadOnly(path, blobPermission)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, blobstore.ErrNotFound.New("%s", ref)
		}
		return nil, Error.New("unable to open %q: %v", path, err)
	}
	return file, nil
}
