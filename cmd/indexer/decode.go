package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doxsearch/mcp-server/internal/searchdata"
)

func (a *app) decodeCmd() *cobra.Command {
	var encode bool

	cmd := &cobra.Command{
		Use:   "decode <shard.js>",
		Short: "Print the entries of a shard as JSON (or re-encode them with --encode)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			entries, err := searchdata.Decode(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if encode {
				return searchdata.Encode(cmd.OutOrStdout(), entries)
			}
			return writeJSON(cmd.OutOrStdout(), entries)
		},
	}

	cmd.Flags().BoolVar(&encode, "encode", false, "write the canonical shard encoding instead of JSON")
	return cmd
}
