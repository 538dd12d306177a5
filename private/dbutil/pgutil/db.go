// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package pgutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/lib/pq"
	"github.com/zeebo/errs"
)

// TempDatabase is a postgres connection restricted to a temporary schema,
// which is dropped on Close.
type TempDatabase struct {
	*sql.DB
	ConnStr string
	Schema  string
}

// OpenUnique opens a postgres database with a temporary unique schema, which will be cleaned up
// when closed.
func OpenUnique(ctx context.Context, connstr string, schemaPrefix string) (*TempDatabase, error) {
	schemaName := schemaPrefix + "-" + CreateRandomTestingSchemaName(8)
	connStrWithSchema := ConnstrWithSchema(connstr, schemaName)

	db, err := sql.Open("postgres", connStrWithSchema)
	if err == nil {
		// check that connection actually worked before trying CreateSchema, to make
		// troubleshooting (lots) easier
		err = db.PingContext(ctx)
	}
	if err != nil {
		if db != nil {
			err = errs.Combine(err, db.Close())
		}
		return nil, errs.New("failed to connect to %q with driver postgres: %v", connStrWithSchema, err)
	}

	if err := CreateSchema(ctx, db, schemaName); err != nil {
		return nil, errs.Combine(err, db.Close())
	}

	return &TempDatabase{
		DB:      db,
		ConnStr: connStrWithSchema,
		Schema:  schemaName,
	}, nil
}

// Close drops the temporary schema and closes the connection.
func (db *TempDatabase) Close() error {
	dropErr := DropSchema(context.Background(), db.DB, db.Schema)
	return errs.Combine(dropErr, db.DB.Close())
}

// CreateRandomTestingSchemaName creates a random schema name string.
func CreateRandomTestingSchemaName(n int) string {
	data := make([]byte, n)
	_, _ = rand.Read(data)
	return hex.EncodeToString(data)
}

// ConnstrWithSchema adds schema to a connection string.
func ConnstrWithSchema(connstr, schema string) string {
	if strings.Contains(connstr, "?") {
		connstr += "&"
	} else {
		connstr += "?"
	}
	return connstr + "search_path=" + url.QueryEscape(pq.QuoteIdentifier(schema))
}

// CreateSchema creates a schema if it doesn't exist.
func CreateSchema(ctx context.Context, db *sql.DB, schema string) (err error) {
	_, err = db.ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS `+pq.QuoteIdentifier(schema)+`;`)
	return errs.Wrap(err)
}

// DropSchema drops the named schema.
func DropSchema(ctx context.Context, db *sql.DB, schema string) error {
	_, err := db.ExecContext(ctx, `DROP SCHEMA `+pq.QuoteIdentifier(schema)+` CASCADE;`)
	return errs.Wrap(err)
}

// CheckApplicationName ensures that the Connection String contains an application name.
func CheckApplicationName(s string, app string) string {
	if strings.Contains(s, "application_name") {
		// return source as is if application_name is set
		return s
	}
	if !strings.Contains(s, "?") {
		return s + "?application_name=" + app
	}
	return s + "&application_name=" + app
}

// IsConstraintError checks if given error is about constraint violation.
func IsConstraintError(err error) bool {
	return errs.IsFunc(err, func(err error) bool {
		if e, ok := err.(*pq.Error); ok {
			if e.Code.Class() == "23" {
				return true
			}
		}
		return false
	})
}
