package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doxsearch/mcp-server/internal/catalog"
)

func (a *app) lookupCmd() *cobra.Command {
	var (
		dir     string
		section string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "lookup <query>",
		Short: "Prefix lookup, the way the documentation search box resolves a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.SearchDir
			}
			c, err := catalog.Open(dir)
			if err != nil {
				return err
			}
			defer c.Close()

			entries, err := c.Lookup(section, args[0], a.cfg.Limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintf(out, "%s\n", dimText("no matches"))
				return nil
			}
			for _, e := range entries {
				printEntry(out, e)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "search data directory (default: configured search dir)")
	cmd.Flags().StringVarP(&section, "section", "s", "all", "index section")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print entries as JSON")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	var (
		dir     string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "search <words>",
		Short: "Full-text symbol search over names and scopes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.SearchDir
			}
			c, err := catalog.Load(dir, a.cfg.SymbolIndexPathFor(dir))
			if err != nil {
				return err
			}
			defer c.Close()

			query := args[0]
			for _, word := range args[1:] {
				query += " " + word
			}
			hits, total, err := c.Search(query, a.cfg.Limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, hits)
			}
			for _, h := range hits {
				fmt.Fprintf(out, "%s %s  %s %s\n", labelText(h.Label), h.Href, h.Scope, dimText(fmt.Sprintf("%.3f", h.Score)))
			}
			fmt.Fprintf(out, "%s\n", dimText(fmt.Sprintf("%d of %d hits", len(hits), total)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "search data directory (default: configured search dir)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print hits as JSON")
	return cmd
}
