package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/doxsearch/mcp-server/internal/catalog"
	"github.com/doxsearch/mcp-server/internal/config"
	"github.com/doxsearch/mcp-server/internal/watch"
)

func (a *app) buildCmd() *cobra.Command {
	var (
		watchFlag bool
		noIndex   bool
	)

	cmd := &cobra.Command{
		Use:   "build [manifest] [out-dir]",
		Short: "Generate search shards and searchdata.js from a symbol manifest",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := argOr(args, 0, a.cfg.Manifest, "manifest")
			if err != nil {
				return err
			}
			outDir, err := argOr(args, 1, a.cfg.SearchDir, "output directory")
			if err != nil {
				return err
			}

			opts := catalog.BuildOptions{Workers: a.cfg.Workers}
			if !noIndex {
				opts.SymbolIndexPath = a.cfg.SymbolIndexPathFor(outDir)
			}

			build := func(ctx context.Context) error {
				result, err := catalog.BuildFromManifest(ctx, manifest, outDir, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d entries in %d shards (%d sections) -> %s\n",
					okText("built"), result.Entries, result.Shards, result.Sections, result.Dir)
				return nil
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			if err := build(ctx); err != nil && !watchFlag {
				return err
			} else if err != nil {
				log.Printf("Warning: Initial build failed: %v", err)
			}
			if !watchFlag {
				return nil
			}

			return watch.New(manifest, a.cfg.WatchDebounce, build).Run(ctx)
		},
	}

	cmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "rebuild whenever the manifest changes")
	cmd.Flags().BoolVar(&noIndex, "no-index", false, "skip building the full-text symbol index")
	cmd.Flags().Duration("debounce", 0, "quiet period before a watched change triggers a rebuild")
	_ = a.v.BindPFlag(config.KeyWatchDebounce, cmd.Flags().Lookup("debounce"))
	return cmd
}
