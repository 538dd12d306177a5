// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package dbutil

import (
	"strings"

	"github.com/zeebo/errs"
)

// Implementation type of valid stores.
type Implementation int

const (
	// Unknown is an unknown store type.
	Unknown Implementation = iota
	// Memory is an in-process store, mainly for tests.
	Memory
	// Postgres is a Postgresdb type.
	Postgres
	// SQLite is an embedded sqlite database.
	SQLite
	// Bolt is a Bolt kv store.
	Bolt
	// Redis is a Redis kv store.
	Redis
)

// ImplementationForScheme returns the Implementation that is used for
// the url with the provided scheme.
func ImplementationForScheme(scheme string) Implementation {
	switch scheme {
	case "memory", "mem":
		return Memory
	case "postgres", "postgresql":
		return Postgres
	case "sqlite", "sqlite3":
		return SQLite
	case "bolt", "boltdb":
		return Bolt
	case "redis":
		return Redis
	default:
		return Unknown
	}
}

// String returns the lowercase name of the implementation.
func (impl Implementation) String() string {
	switch impl {
	case Memory:
		return "memory"
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	case Bolt:
		return "bolt"
	case Redis:
		return "redis"
	default:
		return "<unknown>"
	}
}

// SplitConnStr returns the driver and DSN portions of a URL, along with the
// implementation it names.
func SplitConnStr(s string) (impl Implementation, source string, err error) {
	// consider https://github.com/xo/dburl if this ends up lacking
	parts := strings.SplitN(s, "://", 2)
	if len(parts) != 2 {
		return Unknown, "", errs.New("could not parse DB URL %q", s)
	}
	impl = ImplementationForScheme(parts[0])
	if impl == Unknown {
		return Unknown, "", errs.New("unsupported database scheme %q", parts[0])
	}
	if impl == Postgres || impl == Redis {
		// these drivers understand the full url
		return impl, s, nil
	}
	return impl, parts[1], nil
}
