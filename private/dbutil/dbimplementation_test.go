// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package dbutil_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"storj.io/repostore/private/dbutil"
)

func TestSplitConnStr(t *testing.T) {
	for _, tt := range []struct {
		in     string
		impl   dbutil.Implementation
		source string
	}{
		{"memory://", dbutil.Memory, ""},
		{"bolt:///tmp/x.db", dbutil.Bolt, "/tmp/x.db"},
		{"sqlite://repo.db", dbutil.SQLite, "repo.db"},
		{"redis://127.0.0.1:6379?db=1", dbutil.Redis, "redis://127.0.0.1:6379?db=1"},
		{"postgres://u@h/db?sslmode=disable", dbutil.Postgres, "postgres://u@h/db?sslmode=disable"},
		{"postgresql://u@h/db", dbutil.Postgres, "postgresql://u@h/db"},
	} {
		impl, source, err := dbutil.SplitConnStr(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.impl, impl, tt.in)
		require.Equal(t, tt.source, source, tt.in)
	}

	for _, in := range []string{"", "bolt", "ftp://x"} {
		_, _, err := dbutil.SplitConnStr(in)
		require.Error(t, err, in)
	}
}
