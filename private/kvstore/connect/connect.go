// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package connect opens a kvstore.Store from a database URL.
package connect

import (
	"context"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/repostore/private/dbutil"
	"storj.io/repostore/private/kvstore"
	"storj.io/repostore/private/kvstore/boltdb"
	"storj.io/repostore/private/kvstore/postgreskv"
	"storj.io/repostore/private/kvstore/redis"
	"storj.io/repostore/private/kvstore/sqlitekv"
	"storj.io/repostore/private/kvstore/storelogger"
	"storj.io/repostore/private/kvstore/teststore"
)

// Error is the error class for opening stores.
var Error = errs.Class("kvstore connect")

// DefaultBucket is the bolt bucket used for repository data.
const DefaultBucket = "repository"

// Open opens the store named by databaseURL. Supported schemes are
// memory://, bolt://<path>, sqlite://<path>, redis://<addr>?db=<n> and
// postgres://<connection string>.
//
// When debug logging is enabled, every store call is logged.
func Open(ctx context.Context, log *zap.Logger, databaseURL string) (_ kvstore.Store, err error) {
	impl, source, err := dbutil.SplitConnStr(databaseURL)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	var store kvstore.Store
	switch impl {
	case dbutil.Memory:
		store = teststore.New()
	case dbutil.Bolt:
		store, err = boltdb.New(source, DefaultBucket)
	case dbutil.SQLite:
		store, err = sqlitekv.Open(ctx, log.Named("sqlitekv"), source)
	case dbutil.Redis:
		store, err = redis.OpenClientFrom(ctx, source)
	case dbutil.Postgres:
		store, err = postgreskv.Open(ctx, log.Named("postgreskv"), source)
	default:
		return nil, Error.New("unsupported database %q", databaseURL)
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}

	log.Debug("opened store", zap.Stringer("implementation", impl))
	if log.Core().Enabled(zap.DebugLevel) {
		store = storelogger.New(log.Named("kvstore"), store)
	}
	return store, nil
}
