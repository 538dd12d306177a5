// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	progressbar "github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/common/memory"
	"storj.io/common/process"
	"storj.io/repostore/private/prompt"
	"storj.io/repostore/repository/hashes"
	"storj.io/repostore/repository/maven"
)

var (
	putCmd = &cobra.Command{
		Use:   "put <path> <file>",
		Short: "Store a file at a repository path",
		Args:  cobra.ExactArgs(2),
		RunE:  cmdPut,
	}
	getCmd = &cobra.Command{
		Use:   "get <path> [destination]",
		Short: "Retrieve the content of a repository path",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  cmdGet,
	}
	deleteCmd = &cobra.Command{
		Use:   "delete <path>...",
		Short: "Delete repository paths",
		Args:  cobra.MinimumNArgs(1),
		RunE:  cmdDelete,
	}
	lsCmd = &cobra.Command{
		Use:   "ls",
		Short: "List components and assets",
		Args:  cobra.NoArgs,
		RunE:  cmdList,
	}
	infoCmd = &cobra.Command{
		Use:   "info <path>",
		Short: "Describe the asset stored at a repository path",
		Args:  cobra.ExactArgs(1),
		RunE:  cmdInfo,
	}

	deleteYes   bool
	getProgress bool
)

func init() {
	deleteCmd.Flags().BoolVar(&deleteYes, "yes", false, "delete without asking for confirmation")
	getCmd.Flags().BoolVar(&getProgress, "progress", true, "show a progress bar when writing to a file")
}

func cmdPut(cmd *cobra.Command, args []string) error {
	ctx, _ := process.Ctx(cmd)
	return withFacet(ctx, zap.L(), runCfg, func(ctx context.Context, facet *maven.Facet) error {
		return put(ctx, facet, cmd.OutOrStdout(), args[0], args[1])
	})
}

func cmdGet(cmd *cobra.Command, args []string) error {
	ctx, _ := process.Ctx(cmd)
	return withFacet(ctx, zap.L(), runCfg, func(ctx context.Context, facet *maven.Facet) error {
		if len(args) == 1 || args[1] == "-" {
			return get(ctx, facet, cmd.OutOrStdout(), args[0], nil)
		}
		var progress io.Writer
		if getProgress {
			progress = cmd.ErrOrStderr()
		}
		return getToFile(ctx, facet, args[0], args[1], progress)
	})
}

func cmdDelete(cmd *cobra.Command, args []string) error {
	ctx, _ := process.Ctx(cmd)
	if !deleteYes {
		ok, err := prompt.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("delete %s?", strings.Join(args, ", ")))
		if err != nil || !ok {
			return err
		}
	}
	return withFacet(ctx, zap.L(), runCfg, func(ctx context.Context, facet *maven.Facet) error {
		return remove(ctx, facet, cmd.OutOrStdout(), args...)
	})
}

func cmdList(cmd *cobra.Command, args []string) error {
	ctx, _ := process.Ctx(cmd)
	return withFacet(ctx, zap.L(), runCfg, func(ctx context.Context, facet *maven.Facet) error {
		return list(ctx, facet, cmd.OutOrStdout())
	})
}

func cmdInfo(cmd *cobra.Command, args []string) error {
	ctx, _ := process.Ctx(cmd)
	return withFacet(ctx, zap.L(), runCfg, func(ctx context.Context, facet *maven.Facet) error {
		return info(ctx, facet, cmd.OutOrStdout(), args[0])
	})
}

func put(ctx context.Context, facet *maven.Facet, out io.Writer, path, source string) error {
	content, err := facet.PutFile(ctx, path, source, "", nil)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "stored %s (%s, sha1 %s)\n", content.Path, memory.Size(content.Size), content.Hash(hashes.SHA1))
	return err
}

// get writes the content stored at path to out. When progress is not nil, a
// progress bar is drawn to it.
func get(ctx context.Context, facet *maven.Facet, out io.Writer, path string, progress io.Writer) (err error) {
	content, err := facet.Get(ctx, path)
	if err != nil {
		return err
	}
	if content == nil {
		return errs.New("%s: not found", path)
	}

	reader, err := content.Open(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, reader.Close()) }()

	if progress != nil {
		bar := progressbar.New64(content.Size).SetWriter(progress)
		out = bar.NewProxyWriter(out)
		bar.Start()
		defer bar.Finish()
	}

	_, err = io.Copy(out, reader)
	return err
}

func getToFile(ctx context.Context, facet *maven.Facet, path, destination string, progress io.Writer) (err error) {
	file, err := os.Create(destination)
	if err != nil {
		return err
	}
	defer func() {
		err = errs.Combine(err, file.Close())
		if err != nil {
			_ = os.Remove(destination)
		}
	}()

	return get(ctx, facet, file, path, progress)
}

func remove(ctx context.Context, facet *maven.Facet, out io.Writer, paths ...string) error {
	deleted, err := facet.Delete(ctx, paths...)
	if err != nil {
		return err
	}
	if !deleted {
		_, err = fmt.Fprintln(out, "nothing deleted")
		return err
	}
	_, err = fmt.Fprintf(out, "deleted %s\n", strings.Join(paths, ", "))
	return err
}

func list(ctx context.Context, facet *maven.Facet, out io.Writer) error {
	listing, err := facet.Browse(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, component := range listing.Components {
		fmt.Fprintf(tw, "%s\t%s\t%d assets\n", component.Key, component.Attribute(maven.AttrPackaging), len(component.Assets))
	}
	for _, asset := range listing.Assets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", asset.Name, asset.Kind, memory.Size(asset.Size), asset.LastUpdated.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func info(ctx context.Context, facet *maven.Facet, out io.Writer, path string) error {
	description, err := facet.Describe(ctx, path)
	if err != nil {
		return err
	}
	asset := description.Asset
	if asset == nil {
		return errs.New("%s: not found", path)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "path\t%s\n", asset.Name)
	fmt.Fprintf(tw, "kind\t%s\n", asset.Kind)
	fmt.Fprintf(tw, "content type\t%s\n", asset.ContentType)
	fmt.Fprintf(tw, "size\t%d\n", asset.Size)
	fmt.Fprintf(tw, "blob\t%s\n", asset.Blob)
	fmt.Fprintf(tw, "last modified\t%s\n", asset.Content.LastModified)
	fmt.Fprintf(tw, "last updated\t%s\n", asset.LastUpdated)
	fmt.Fprintf(tw, "last accessed\t%s\n", asset.LastAccessed)
	for _, alg := range maven.HashAlgorithms {
		if digest, ok := asset.Hashes[alg]; ok {
			fmt.Fprintf(tw, "%s\t%s\n", alg, digest)
		}
	}

	if component := description.Component; component != nil {
		fmt.Fprintf(tw, "component\t%s\n", component.Key)
		names := make([]string, 0, len(component.Attributes))
		for name := range component.Attributes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(tw, "  %s\t%s\n", name, component.Attributes[name])
		}
	}
	return tw.Flush()
}
