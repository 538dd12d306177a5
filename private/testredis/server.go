// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

// Package testredis is package for starting a redis test server.
package testredis

import (
	"context"
	"strconv"

	"github.com/alicebob/miniredis/v2"
	"github.com/zeebo/errs"
)

// Error is a testredis error.
var Error = errs.Class("testredis")

// Server is an in-process redis server used for tests.
type Server struct {
	mini *miniredis.Miniredis
}

// Start starts an in-process redis server.
func Start(ctx context.Context) (*Server, error) {
	if err := ctx.Err(); err != nil {
		return nil, Error.Wrap(err)
	}

	mini, err := miniredis.Run()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &Server{mini: mini}, nil
}

// Addr returns the host:port the server listens on.
func (server *Server) Addr() string { return server.mini.Addr() }

// URL returns the redis:// address for database db.
func (server *Server) URL(db int) string {
	return "redis://" + server.mini.Addr() + "?db=" + strconv.Itoa(db)
}

// FlushAll removes every key from every database.
func (server *Server) FlushAll() { server.mini.FlushAll() }

// Close stops the server.
func (server *Server) Close() error {
	server.mini.Close()
	return nil
}

