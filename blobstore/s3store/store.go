// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package s3store implements blobstore.Blobs on S3 compatible object storage.
package s3store

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/repostore/blobstore"
)

var (
	// Error is the default s3store error class.
	Error = errs.Class("s3store")

	mon = monkit.Package()

	_ blobstore.Blobs = (*Store)(nil)
)

// Config configures the object storage connection.
type Config struct {
	Endpoint  string `help:"S3 endpoint host:port" default:""`
	Bucket    string `help:"bucket holding the blobs" default:"repostore"`
	Prefix    string `help:"key prefix inside the bucket" default:"blobs"`
	AccessKey string `help:"S3 access key" default:""`
	SecretKey string `help:"S3 secret key" default:""`
	Region    string `help:"S3 region" default:""`
	Secure    bool   `help:"use https to connect" default:"true"`
	TempDir   string `help:"directory for spooling uploads, empty for the system default" default:""`
}

// ParseURL parses s3://access:secret@host:port/bucket/prefix?secure=false
// into a Config.
func ParseURL(rawurl string) (Config, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return Config{}, Error.Wrap(err)
	}
	if u.Scheme != "s3" {
		return Config{}, Error.New("not a s3:// formatted address")
	}

	config := Config{
		Endpoint: u.Host,
		Secure:   true,
		Region:   u.Query().Get("region"),
	}
	if u.User != nil {
		config.AccessKey = u.User.Username()
		config.SecretKey, _ = u.User.Password()
	}

	bucket, prefix, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if bucket == "" {
		return Config{}, Error.New("bucket missing in %q", u.Redacted())
	}
	config.Bucket = bucket
	config.Prefix = strings.TrimSuffix(prefix, "/")

	if s := u.Query().Get("secure"); s != "" {
		config.Secure, err = strconv.ParseBool(s)
		if err != nil {
			return Config{}, Error.New("invalid secure %q: %v", s, err)
		}
	}
	return config, nil
}

// Store stores blobs as objects named by their reference.
type Store struct {
	log    *zap.Logger
	client *minio.Client
	config Config
}

// Open connects to the object storage and makes sure the bucket exists.
func Open(ctx context.Context, log *zap.Logger, config Config) (_ *Store, err error) {
	defer mon.Task()(&ctx)(&err)

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.Secure,
		Region: config.Region,
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	exists, err := client.BucketExists(ctx, config.Bucket)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if !exists {
		log.Info("creating bucket", zap.String("bucket", config.Bucket))
		err = client.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{Region: config.Region})
		if err != nil {
			return nil, Error.Wrap(err)
		}
	}

	return New(log, client, config), nil
}

// New wraps an existing client.
func New(log *zap.Logger, client *minio.Client, config Config) *Store {
	return &Store{log: log, client: client, config: config}
}

// Key returns the object key of ref.
func (store *Store) Key(ref blobstore.BlobRef) string {
	return path.Join(store.config.Prefix, ref.Prefix(), string(ref))
}

// Create spools the blob to a temporary file. The object is uploaded on Commit.
func (store *Store) Create(ctx context.Context) (_ blobstore.BlobWriter, err error) {
	defer mon.Task()(&ctx)(&err)

	file, err := os.CreateTemp(store.config.TempDir, "repostore-s3-*.partial")
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &blobWriter{store: store, file: file, hasher: blobstore.NewHasher()}, nil
}

// Open returns the object contents.
func (store *Store) Open(ctx context.Context, ref blobstore.BlobRef) (_ io.ReadCloser, err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := store.Stat(ctx, ref); err != nil {
		return nil, err
	}

	object, err := store.client.GetObject(ctx, store.config.Bucket, store.Key(ref), minio.GetObjectOptions{})
	if err != nil {
		return nil, convertError(ref, err)
	}
	return object, nil
}

// Stat returns the object size.
func (store *Store) Stat(ctx context.Context, ref blobstore.BlobRef) (_ blobstore.BlobInfo, err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := blobstore.ParseBlobRef(string(ref)); err != nil {
		return blobstore.BlobInfo{}, err
	}

	info, err := store.client.StatObject(ctx, store.config.Bucket, store.Key(ref), minio.StatObjectOptions{})
	if err != nil {
		return blobstore.BlobInfo{}, convertError(ref, err)
	}
	return blobstore.BlobInfo{Ref: ref, Size: info.Size}, nil
}

// Close releases the store.
func (store *Store) Close() error { return nil }

func convertError(ref blobstore.BlobRef, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return blobstore.ErrNotFound.New("%s", ref)
	}
	return Error.Wrap(err)
}

type blobWriter struct {
	store  *Store
	file   *os.File
	hasher *blobstore.Hasher
	closed bool
}

// Write adds data to the blob.
func (blob *blobWriter) Write(p []byte) (int, error) {
	if blob.closed {
		return 0, Error.New("write to closed blob")
	}
	n, err := blob.file.Write(p)
	_, _ = blob.hasher.Write(p[:n])
	return n, err
}

// Size returns how much has been written so far.
func (blob *blobWriter) Size() int64 { return blob.hasher.Size() }

// Cancel discards the spooled data.
func (blob *blobWriter) Cancel(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)
	if blob.closed {
		return nil
	}
	blob.closed = true
	return Error.Wrap(blob.discard())
}

// Commit uploads the spooled data unless the object exists already.
func (blob *blobWriter) Commit(ctx context.Context) (_ blobstore.BlobInfo, err error) {
	defer mon.Task()(&ctx)(&err)
	if blob.closed {
		return blobstore.BlobInfo{}, Error.New("already closed")
	}
	blob.closed = true
	defer func() { err = errs.Combine(err, Error.Wrap(blob.discard())) }()

	store := blob.store
	info := blobstore.BlobInfo{Ref: blob.hasher.Ref(), Size: blob.hasher.Size()}

	if _, err := store.Stat(ctx, info.Ref); err == nil {
		mon.Meter("blob_deduplicated").Mark(1)
		return info, nil
	} else if !blobstore.ErrNotFound.Has(err) {
		return blobstore.BlobInfo{}, err
	}

	if _, err := blob.file.Seek(0, io.SeekStart); err != nil {
		return blobstore.BlobInfo{}, Error.Wrap(err)
	}

	_, err = store.client.PutObject(ctx, store.config.Bucket, store.Key(info.Ref), blob.file, info.Size,
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return blobstore.BlobInfo{}, Error.Wrap(err)
	}

	store.log.Debug("uploaded blob", zap.Stringer("ref", info.Ref), zap.Int64("size", info.Size))
	mon.Meter("blob_written_bytes").Mark64(info.Size)
	return info, nil
}

func (blob *blobWriter) discard() error {
	return errs.Combine(blob.file.Close(), os.Remove(blob.file.Name()))
}
