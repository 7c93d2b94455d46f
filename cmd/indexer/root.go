package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/doxsearch/mcp-server/internal/config"
)

const version = "0.3.0"

// app carries the state shared by all subcommands of one invocation
type app struct {
	v       *viper.Viper
	cfgFile string
	envFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "indexer",
		Short:         "indexer builds, checks and serves documentation symbol search data",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, config.LoadOptions{
				ConfigFile: a.cfgFile,
				EnvFile:    a.envFile,
			})
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file (default: ./doxsearch.{yaml,toml,json} or ~/.doxsearch/doxsearch.*)")
	pf.StringVar(&a.envFile, "env-file", "", "dotenv file with DOXSEARCH_* variables (default: .env)")
	pf.String("data-dir", "", "data directory (default: ~/.doxsearch)")
	pf.String("search-dir", "", "search data directory (default: <data-dir>/search)")
	pf.String("manifest", "", "symbol manifest (YAML or JSON)")
	pf.Int("workers", 0, "concurrent shard writers (0 = one per CPU)")
	pf.Int("limit", 20, "default maximum number of results")

	_ = a.v.BindPFlag(config.KeyDataDir, pf.Lookup("data-dir"))
	_ = a.v.BindPFlag(config.KeySearchDir, pf.Lookup("search-dir"))
	_ = a.v.BindPFlag(config.KeyManifest, pf.Lookup("manifest"))
	_ = a.v.BindPFlag(config.KeyWorkers, pf.Lookup("workers"))
	_ = a.v.BindPFlag(config.KeyLimit, pf.Lookup("limit"))

	root.AddCommand(
		a.buildCmd(),
		a.validateCmd(),
		a.lookupCmd(),
		a.searchCmd(),
		a.decodeCmd(),
		a.serveCmd(),
	)
	return root
}

// signalContext is cancelled on interrupt, for long-running commands
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// argOr returns args[i] when present, otherwise fallback; empty results are usage errors
func argOr(args []string, i int, fallback, what string) (string, error) {
	if len(args) > i {
		return args[i], nil
	}
	if fallback == "" {
		return "", fmt.Errorf("no %s given and none configured", what)
	}
	return fallback, nil
}
