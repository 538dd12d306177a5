// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package migrate_test

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	_ "modernc.org/sqlite"

	"storj.io/common/testcontext"
	"storj.io/repostore/private/dbutil"
	"storj.io/repostore/private/migrate"
)

func openSQLite(t *testing.T, ctx *testcontext.Context) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { ctx.Check(db.Close) })
	return db
}

func TestRun(t *testing.T) {
	ctx := testcontext.New(t)
	log := zaptest.NewLogger(t)
	db := openSQLite(t, ctx)

	migration := &migrate.Migration{
		Table: "versions",
		Steps: []*migrate.Step{
			{Version: 0, Description: "initial", SQL: []string{`CREATE TABLE example (id TEXT)`}},
		},
	}

	version, err := migration.CurrentVersion(ctx, db)
	require.NoError(t, err)
	require.Equal(t, -1, version)

	require.NoError(t, migration.Run(ctx, log, dbutil.SQLite, db))
	// applied steps are skipped
	require.NoError(t, migration.Run(ctx, log, dbutil.SQLite, db))

	migration.Steps = append(migration.Steps, &migrate.Step{
		Version:     1,
		Description: "add name",
		SQL:         []string{`ALTER TABLE example ADD COLUMN name TEXT`},
	})
	require.NoError(t, migration.Run(ctx, log, dbutil.SQLite, db))

	version, err = migration.CurrentVersion(ctx, db)
	require.NoError(t, err)
	require.Equal(t, 1, version)

	_, err = db.ExecContext(ctx, `INSERT INTO example (id, name) VALUES ('a', 'b')`)
	require.NoError(t, err)
}

func TestRunFailingStep(t *testing.T) {
	ctx := testcontext.New(t)
	db := openSQLite(t, ctx)

	migration := &migrate.Migration{
		Table: "versions",
		Steps: []*migrate.Step{
			{Version: 0, SQL: []string{`CREATE TABLE example (id TEXT)`}},
			{Version: 1, SQL: []string{`ALTER TABLE missing ADD COLUMN name TEXT`}},
		},
	}
	require.Error(t, migration.Run(ctx, zaptest.NewLogger(t), dbutil.SQLite, db))

	version, err := migration.CurrentVersion(ctx, db)
	require.NoError(t, err)
	require.Equal(t, 0, version)
}

func TestValidate(t *testing.T) {
	require.Error(t, (&migrate.Migration{Table: "Bad-Name"}).Validate())

	unordered := &migrate.Migration{
		Table: "versions",
		Steps: []*migrate.Step{{Version: 1}, {Version: 0}},
	}
	require.Error(t, unordered.Validate())

	duplicate := &migrate.Migration{
		Table: "versions",
		Steps: []*migrate.Step{{Version: 0}, {Version: 0}},
	}
	require.Error(t, duplicate.Validate())

	require.NoError(t, (&migrate.Migration{Table: "versions"}).Validate())
}
