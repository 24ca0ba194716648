package main

import (
	"github.com/spf13/cobra"

	"provermon/internal/config"
)

type rootFlags struct {
	configFile string
	envFile    string
}

func (f *rootFlags) options() config.Options {
	return config.Options{File: f.configFile, EnvFile: f.envFile}
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:   "provermon",
		Short: "Watch a Succinct prover and post status changes to Discord",
		Long: `provermon polls the Succinct prover network for the latest proof request
of one prover and posts a notification when its state changes, plus a
periodic heartbeat.

Settings come from the environment (PROVER_ADDRESS, DISCORD_WEBHOOK_URL, ...),
an optional .env file and an optional config file. LOG_LEVEL accepts TRACE,
DEBUG, INFO, WARN, ERROR and CRITICAL; CRITICAL logs errors only.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonitor(cmd, f)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&f.configFile, "config", "c", "", "config file (yaml, json, toml or .env)")
	pf.StringVar(&f.envFile, "env-file", "", `dotenv file; "-" disables, empty reads ./.env when present`)

	rootCmd.AddCommand(
		newRunCmd(f),
		newCheckCmd(f),
		newConfigCmd(f),
		newVersionCmd(),
	)
	return rootCmd
}
