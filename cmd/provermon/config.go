package main

import (
	"github.com/spf13/cobra"

	"provermon/internal/config"
)

func newConfigCmd(f *rootFlags) *cobra.Command {
	var (
		validate bool
		format   string
	)
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration (secrets redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Read(f.options())
			if err != nil {
				return err
			}
			if validate {
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			b, err := cfg.Render(format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	cmd.Flags().BoolVar(&validate, "validate", false, "fail when the configuration is invalid")
	cmd.Flags().StringVarP(&format, "format", "o", "yaml", "output format: yaml or toml")
	return cmd
}
