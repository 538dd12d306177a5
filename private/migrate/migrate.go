// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package migrate applies versioned schema changes to sql databases.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/repostore/private/dbutil"
	"storj.io/repostore/private/dbutil/txutil"
)

var (
	// Error is the default migrate errs class.
	Error = errs.Class("migrate")

	mon = monkit.Package()

	validTableName = regexp.MustCompile(`^[a-z_]+$`)
)

// Migration describes the versions of a database schema.
//
// The applied versions are recorded in Table, every step runs in its own
// transaction together with its version record.
type Migration struct {
	Table string
	Steps []*Step
}

// Step is a single schema version.
type Step struct {
	Description string
	// Version must start at 0 and increase.
	Version int
	SQL     []string
}

// Validate checks the table name and the order of the steps.
func (migration *Migration) Validate() error {
	if !validTableName.MatchString(migration.Table) {
		return Error.New("invalid table name: %q", migration.Table)
	}
	for i := 1; i < len(migration.Steps); i++ {
		if migration.Steps[i].Version <= migration.Steps[i-1].Version {
			return Error.New("steps have incorrect order at version %d", migration.Steps[i].Version)
		}
	}
	return nil
}

// Run applies every step newer than the current version of db.
func (migration *Migration) Run(ctx context.Context, log *zap.Logger, impl dbutil.Implementation, db *sql.DB) (err error) {
	defer mon.Task()(&ctx)(&err)

	if err := migration.Validate(); err != nil {
		return err
	}

	current, err := migration.CurrentVersion(ctx, db)
	if err != nil {
		return err
	}
	initialSetup := current < 0

	for _, step := range migration.Steps {
		if step.Version <= current {
			continue
		}

		stepLog := log.Named(strconv.Itoa(step.Version))
		if !initialSetup {
			stepLog.Info(step.Description)
		}

		err := txutil.WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
			for _, query := range step.SQL {
				if _, err := tx.ExecContext(ctx, query); err != nil {
					return errs.Wrap(err)
				}
			}
			_, err := tx.ExecContext(ctx,
				rebind(impl, `INSERT INTO `+migration.Table+` (version, committed_at) VALUES (?, ?)`),
				step.Version, time.Now().UTC().Format(time.RFC3339Nano))
			return err
		})
		if err != nil {
			return Error.New("step %d: %w", step.Version, err)
		}
	}

	if len(migration.Steps) > 0 {
		last := migration.Steps[len(migration.Steps)-1]
		if initialSetup {
			log.Debug("database created", zap.Int("version", last.Version))
		} else {
			log.Debug("database version", zap.Int("version", last.Version))
		}
	}
	return nil
}

// CurrentVersion returns the latest applied version, -1 when none is.
func (migration *Migration) CurrentVersion(ctx context.Context, db *sql.DB) (_ int, err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+migration.Table+` (version INTEGER NOT NULL, committed_at TEXT NOT NULL)`)
	if err != nil {
		return -1, Error.New("creating version table: %w", err)
	}

	var version sql.NullInt64
	err = db.QueryRowContext(ctx, `SELECT MAX(version) FROM `+migration.Table).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows), err == nil && !version.Valid:
		return -1, nil
	case err != nil:
		return -1, Error.Wrap(err)
	}
	return int(version.Int64), nil
}

// rebind replaces ? placeholders with the numbered form postgres expects.
func rebind(impl dbutil.Implementation, query string) string {
	if impl != dbutil.Postgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}
