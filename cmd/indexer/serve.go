package main

import (
	"context"
	"log"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/doxsearch/mcp-server/internal/catalog"
	"github.com/doxsearch/mcp-server/internal/config"
	"github.com/doxsearch/mcp-server/internal/server"
	"github.com/doxsearch/mcp-server/internal/watch"
)

func (a *app) serveCmd() *cobra.Command {
	var watchFlag bool

	cmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Serve shards, a JSON lookup API, health and Prometheus metrics over HTTP",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := argOr(args, 0, a.cfg.SearchDir, "search directory")
			if err != nil {
				return err
			}
			indexPath := a.cfg.SymbolIndexPathFor(dir)
			load := func() (*catalog.Catalog, error) {
				return catalog.Load(dir, indexPath)
			}

			metrics := server.NewMetrics(version, runtime.Version())
			holder := catalog.NewHolder()
			defer holder.Close()

			reload := func() error {
				_, err := holder.Reload(load)
				if err != nil {
					metrics.CatalogReloads.WithLabelValues("error").Inc()
					return err
				}
				metrics.CatalogReloads.WithLabelValues("ok").Inc()
				return nil
			}
			if err := reload(); err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			if watchFlag && a.cfg.Manifest != "" {
				rebuild := func(ctx context.Context) error {
					if _, err := catalog.BuildFromManifest(ctx, a.cfg.Manifest, dir, catalog.BuildOptions{
						Workers:         a.cfg.Workers,
						SymbolIndexPath: indexPath,
					}); err != nil {
						return err
					}
					return reload()
				}
				go func() {
					if err := watch.New(a.cfg.Manifest, a.cfg.WatchDebounce, rebuild).Run(ctx); err != nil {
						log.Printf("Warning: Manifest watcher stopped: %v", err)
					}
				}()
			} else if watchFlag {
				log.Printf("Warning: --watch needs a manifest (--manifest or DOXSEARCH_MANIFEST)")
			}

			srv := server.New(a.cfg.Addr, holder, metrics, a.cfg.Limit)
			return srv.Run(ctx, a.cfg.ShutdownTimeout)
		},
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "rebuild and reload when the manifest changes")
	_ = a.v.BindPFlag(config.KeyAddr, cmd.Flags().Lookup("addr"))
	return cmd
}
