package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"provermon/internal/app"
	"provermon/internal/config"
	logx "provermon/pkg/logx"
)

func newCheckCmd(f *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Fetch the latest request once and send it",
		Long: `check fetches the latest proof request once, sends it to the configured
channels without deduplication and exits. Fetch and delivery errors are
logged; only configuration errors make it fail.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgm := config.NewManager(f.options(), logx.NewConsole("INFO"))
			if _, err := cfgm.Load(); err != nil {
				return err
			}
			a, err := app.New(cfgm)
			if err != nil {
				return fmt.Errorf("init: %w", err)
			}
			defer func() { _ = a.Stop(cmd.Context()) }()

			rec, err := a.Check(cmd.Context())
			if err != nil {
				a.Logger().Error("check failed", logx.Err(err))
			}
			if !asJSON {
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "also print the fetched record as JSON")
	return cmd
}
