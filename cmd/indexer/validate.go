package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/doxsearch/mcp-server/internal/config"
	"github.com/doxsearch/mcp-server/internal/searchdata"
)

func (a *app) validateCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "validate [dir|shard.js]",
		Short: "Check search data for key, link, membership and ordering problems",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := argOr(args, 0, a.cfg.SearchDir, "search directory")
			if err != nil {
				return err
			}
			opts := searchdata.ValidateOptions{Strict: a.cfg.Strict}

			info, err := os.Stat(target)
			if err != nil {
				return err
			}
			var report *searchdata.Report
			if info.IsDir() {
				if report, err = searchdata.ValidateDir(target, opts); err != nil {
					return err
				}
			} else {
				data, err := os.ReadFile(target)
				if err != nil {
					return err
				}
				entries, findings := searchdata.ValidateShard(filepath.Base(target), data, opts)
				report = &searchdata.Report{Files: 1, Entries: len(entries), Findings: findings}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if err := writeJSON(out, report); err != nil {
					return err
				}
			} else {
				for _, f := range report.Findings {
					printFinding(out, f)
				}
				status := okText("valid")
				if !report.Valid() {
					status = errorText("INVALID")
				}
				fmt.Fprintf(out, "%s: %d files, %d entries, %d errors, %d warnings\n",
					status, report.Files, report.Entries, report.Errors(), report.Warnings())
			}

			if !report.Valid() {
				return fmt.Errorf("validation failed with %d errors", report.Errors())
			}
			return nil
		},
	}

	cmd.Flags().Bool("strict", false, "treat links without an anchor as errors")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the report as JSON")
	_ = a.v.BindPFlag(config.KeyStrict, cmd.Flags().Lookup("strict"))
	return cmd
}
