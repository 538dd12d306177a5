// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package postgreskv

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/common/testcontext"
	"storj.io/repostore/private/dbutil/pgutil"
	"storj.io/repostore/private/dbutil/pgutil/pgtest"
	"storj.io/repostore/private/kvstore/testsuite"
)

func TestSuite(t *testing.T) {
	connstr := pgtest.PickPostgres(t)

	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	tempDB, err := pgutil.OpenUnique(ctx, connstr, "postgreskv")
	require.NoError(t, err)
	defer ctx.Check(tempDB.Close)

	client, err := Wrap(ctx, zaptest.NewLogger(t), tempDB.DB)
	require.NoError(t, err)

	testsuite.RunTests(t, client)
}
