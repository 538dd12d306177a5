// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	hw "github.com/jtolds/monkit-hw/v2"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/common/cfgstruct"
	"storj.io/common/fpath"
	"storj.io/common/process"
	"storj.io/common/version"
	"storj.io/repostore/blobstore/connect"
	"storj.io/repostore/blobstore/filestore"
	_ "storj.io/repostore/private/version" // sets the build information
	kvconnect "storj.io/repostore/private/kvstore/connect"
	"storj.io/repostore/repository"
	"storj.io/repostore/repository/maven"
	"storj.io/repostore/repository/storage"
)

// Config contains the configuration of a repository.
type Config struct {
	DatabaseURL string `help:"database holding components and assets: memory://, bolt://<path>, sqlite://<path>, redis://<addr>?db=<n> or postgres://..." default:"bolt://$CONFDIR/repository.db"`
	BlobsURL    string `help:"blob store for payloads: a directory, file://<dir> or s3://<access>:<secret>@<host>/<bucket>/<prefix>" default:"$CONFDIR/blobs"`

	Repository struct {
		Name string `help:"name of the repository" default:"releases"`
		Type string `help:"type of the repository: hosted, proxy or group" default:"hosted"`
	}

	Storage   storage.Config
	Maven     maven.Config
	Filestore filestore.Config
}

var (
	rootCmd = &cobra.Command{
		Use:   "repostore",
		Short: "Transactional maven2 artifact storage",
	}
	setupCmd = &cobra.Command{
		Use:         "setup",
		Short:       "Create config files",
		RunE:        cmdSetup,
		Annotations: map[string]string{"type": "setup"},
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printVersion(cmd.OutOrStdout(), version.Build)
		},
	}

	runCfg   Config
	setupCfg Config
	confDir  string
)

func init() {
	defaultConfDir := fpath.ApplicationDir("storj", "repostore")
	cfgstruct.SetupFlag(zap.L(), rootCmd, &confDir, "config-dir", defaultConfDir, "main directory for repostore configuration")
	defaults := cfgstruct.DefaultsFlag(rootCmd)

	rootCmd.AddCommand(setupCmd, versionCmd)
	process.Bind(setupCmd, &setupCfg, defaults, cfgstruct.ConfDir(confDir), cfgstruct.SetupMode())

	for _, cmd := range []*cobra.Command{putCmd, getCmd, deleteCmd, lsCmd, infoCmd} {
		rootCmd.AddCommand(cmd)
		process.Bind(cmd, &runCfg, defaults, cfgstruct.ConfDir(confDir))
	}
}

func cmdSetup(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)

	setupDir, err := filepath.Abs(confDir)
	if err != nil {
		return err
	}

	valid, _ := fpath.IsValidSetupDir(setupDir)
	if !valid {
		return fmt.Errorf("repostore configuration already exists (%v)", setupDir)
	}

	err = os.MkdirAll(setupDir, 0700)
	if err != nil {
		return err
	}

	// open once to create the database and blob directories
	err = withFacet(ctx, zap.L(), setupCfg, func(ctx context.Context, facet *maven.Facet) error { return nil })
	if err != nil {
		return err
	}

	return process.SaveConfig(cmd, filepath.Join(setupDir, "config.yaml"))
}

func printVersion(out io.Writer, info version.Info) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Version:\t%s\n", info.Version.String())
	fmt.Fprintf(w, "Release build:\t%t\n", info.Release)
	if info.CommitHash != "" {
		fmt.Fprintf(w, "Commit:\t%s\n", info.CommitHash)
	}
	if !info.Timestamp.IsZero() {
		fmt.Fprintf(w, "Build timestamp:\t%s\n", info.Timestamp.Format(time.RFC3339))
	}
	return w.Flush()
}

// withFacet opens the stores of config, runs fn with the repository facet and
// closes everything afterwards.
func withFacet(ctx context.Context, log *zap.Logger, config Config, fn func(context.Context, *maven.Facet) error) (err error) {
	repoType, err := repository.ParseType(config.Repository.Type)
	if err != nil {
		return err
	}
	repo := repository.Repository{
		Name:   config.Repository.Name,
		Format: repository.FormatMaven2,
		Type:   repoType,
	}

	kv, err := kvconnect.Open(ctx, log.Named("db"), config.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, kv.Close()) }()

	blobs, err := connect.Open(ctx, log.Named("blobs"), config.BlobsURL, config.Filestore)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, blobs.Close()) }()

	db := storage.NewDB(log.Named("storage"), kv, blobs, config.Storage)

	facet, err := maven.NewFacet(log.Named("maven"), repo, db, config.Maven)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, facet.Close()) }()

	return fn(ctx, facet)
}

func main() {
	logger, _, _ := process.NewLogger("repostore")
	zap.ReplaceGlobals(logger)
	hw.Register(monkit.Default)

	process.Exec(rootCmd)
}
