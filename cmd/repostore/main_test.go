// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/common/memory"
	"storj.io/common/testcontext"
	"storj.io/common/testrand"
	"storj.io/common/version"
	"storj.io/repostore/blobstore/filestore"
	"storj.io/repostore/repository/maven"
	"storj.io/repostore/repository/storage"
)

func testConfig(ctx *testcontext.Context, databaseURL string) Config {
	var config Config
	config.DatabaseURL = databaseURL
	config.BlobsURL = "file://" + ctx.Dir("blobs")
	config.Repository.Name = "releases"
	config.Repository.Type = "hosted"
	config.Storage = storage.DefaultConfig
	config.Maven = maven.DefaultConfig
	config.Filestore = filestore.DefaultConfig
	config.Filestore.Compression = "zstd"
	return config
}

func TestCommands(t *testing.T) {
	for _, tt := range []struct {
		name string
		url  func(ctx *testcontext.Context) string
	}{
		{"bolt", func(ctx *testcontext.Context) string { return "bolt://" + ctx.File("db", "repository.db") }},
		{"sqlite", func(ctx *testcontext.Context) string { return "sqlite://" + ctx.File("db", "repository.sqlite") }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testcontext.New(t)
			defer ctx.Cleanup()

			log := zaptest.NewLogger(t)
			config := testConfig(ctx, tt.url(ctx))

			const path = "com/acme/lib/1.0/lib-1.0.jar"
			data := testrand.BytesInt(8 * memory.KiB.Int())
			source := ctx.File("upload", "lib-1.0.jar")
			require.NoError(t, os.WriteFile(source, data, 0o644))

			run := func(fn func(context.Context, *maven.Facet) error) {
				require.NoError(t, withFacet(ctx, log, config, fn))
			}

			var out bytes.Buffer
			run(func(ctx context.Context, facet *maven.Facet) error {
				return put(ctx, facet, &out, path, source)
			})
			require.Contains(t, out.String(), "stored "+path)

			// reopening the stores keeps the content
			out.Reset()
			run(func(ctx context.Context, facet *maven.Facet) error {
				return get(ctx, facet, &out, path, nil)
			})
			require.Equal(t, data, out.Bytes())

			var progress bytes.Buffer
			destination := ctx.File("download", "lib-1.0.jar")
			run(func(ctx context.Context, facet *maven.Facet) error {
				return getToFile(ctx, facet, path, destination, &progress)
			})
			downloaded, err := os.ReadFile(destination)
			require.NoError(t, err)
			require.Equal(t, data, downloaded)
			require.NotEmpty(t, progress.String())

			out.Reset()
			run(func(ctx context.Context, facet *maven.Facet) error {
				return list(ctx, facet, &out)
			})
			require.Contains(t, out.String(), "com.acme:lib:1.0")
			require.Contains(t, out.String(), path)

			out.Reset()
			run(func(ctx context.Context, facet *maven.Facet) error {
				return info(ctx, facet, &out, path)
			})
			require.Contains(t, out.String(), "ARTIFACT")
			require.Contains(t, out.String(), "artifactId")

			out.Reset()
			run(func(ctx context.Context, facet *maven.Facet) error {
				return remove(ctx, facet, &out, path)
			})
			require.Contains(t, out.String(), "deleted")

			err = withFacet(ctx, log, config, func(ctx context.Context, facet *maven.Facet) error {
				return get(ctx, facet, &out, path, nil)
			})
			require.Error(t, err)
		})
	}
}

func TestWithFacetInvalidConfig(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	log := zaptest.NewLogger(t)
	noop := func(context.Context, *maven.Facet) error { return nil }

	config := testConfig(ctx, "memory://")
	config.Repository.Type = "mirror"
	require.Error(t, withFacet(ctx, log, config, noop))

	config = testConfig(ctx, "unknown://x")
	require.Error(t, withFacet(ctx, log, config, noop))

	config = testConfig(ctx, "memory://")
	config.BlobsURL = "ftp://host/blobs"
	require.Error(t, withFacet(ctx, log, config, noop))

	config = testConfig(ctx, "memory://")
	config.Maven.WritePolicy = "SOMETIMES"
	require.Error(t, withFacet(ctx, log, config, noop))

	config = testConfig(ctx, "memory://")
	require.NoError(t, withFacet(ctx, log, config, noop))
}

func TestPrintVersion(t *testing.T) {
	semver, err := version.NewSemVer("v1.2.3")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printVersion(&out, version.Info{Version: semver, Release: true, CommitHash: "abc"}))
	require.Contains(t, out.String(), "v1.2.3")
	require.Contains(t, out.String(), "true")
	require.Contains(t, out.String(), "abc")
	require.NotContains(t, out.String(), "Build timestamp")
}
